package redis_batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

type ConnConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port" validate:"gte=0,lte=65535"`
	Password string `json:"password"`
	DB       int    `json:"db" validate:"gte=0,lte=15"`
}

func (c *ConnConfig) WithDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 6379
	}
}

type client struct {
	conn net.Conn
	rd   *bufio.Reader
}

func openRedis(ctx context.Context, cfg ConnConfig) (*client, error) {
	cfg.WithDefaults()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	d := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &client{conn: conn, rd: bufio.NewReader(conn)}

	if cfg.Password != "" {
		if _, err := c.do("AUTH", cfg.Password); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if cfg.DB > 0 {
		if _, err := c.do("SELECT", strconv.Itoa(cfg.DB)); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if _, err := c.do("PING"); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *client) close() error {
	return c.conn.Close()
}

// encodeCommand renders a RESP array of bulk strings.
func encodeCommand(cmd string, args ...string) []byte {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, strings.ToUpper(cmd))
	parts = append(parts, args...)

	var b strings.Builder
	b.WriteString("*")
	b.WriteString(strconv.Itoa(len(parts)))
	b.WriteString("\r\n")
	for _, p := range parts {
		b.WriteString("$")
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteString("\r\n")
		b.WriteString(p)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

func (c *client) do(cmd string, args ...string) (interface{}, error) {
	if _, err := c.conn.Write(encodeCommand(cmd, args...)); err != nil {
		return nil, err
	}

	v, err := c.readResp()
	if err != nil {
		return nil, err
	}
	if e, ok := v.(respErr); ok {
		return nil, fmt.Errorf("redis %s: %s", strings.ToUpper(cmd), string(e))
	}
	return v, nil
}

type respErr string

func (c *client) readResp() (interface{}, error) {
	prefix, err := c.rd.ReadByte()
	if err != nil {
		return nil, err
	}
	switch prefix {
	case '+':
		s, err := c.rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r"), nil
	case '-':
		s, err := c.rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		return respErr(strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")), nil
	case ':':
		s, err := c.rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case '$':
		s, err := c.rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(c.rd, buf); err != nil {
			return nil, err
		}
		return string(buf[:n]), nil
	case '*':
		s, err := c.rd.ReadString('\n')
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, nil
		}
		out := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			v, err := c.readResp()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown redis resp type: %q", string(prefix))
	}
}

// scan walks every key matching pattern and hands each page to fn.
func (c *client) scan(pattern string, count int, fn func(keys []string) error) error {
	cursor := "0"
	for {
		v, err := c.do("SCAN", cursor, "MATCH", pattern, "COUNT", strconv.Itoa(count))
		if err != nil {
			return err
		}
		arr, ok := v.([]interface{})
		if !ok || len(arr) != 2 {
			return fmt.Errorf("unexpected SCAN response")
		}
		cursor = toString(arr[0])
		keysRaw, ok := arr[1].([]interface{})
		if !ok {
			return fmt.Errorf("unexpected SCAN keys response")
		}
		keys := make([]string, 0, len(keysRaw))
		for _, kv := range keysRaw {
			if k := toString(kv); k != "" {
				keys = append(keys, k)
			}
		}
		if err := fn(keys); err != nil {
			return err
		}
		if cursor == "0" {
			return nil
		}
	}
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
