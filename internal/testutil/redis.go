package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryRedis answers go-redis commands from a map inside a process hook, so
// the client never dials. It understands GET, SET, DEL, KEYS and PING; KEYS
// supports exact keys and trailing-* patterns.
type MemoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

// NewRedisClient returns a client backed by a fresh MemoryRedis.
func NewRedisClient() (*redis.Client, *MemoryRedis) {
	m := &MemoryRedis{data: make(map[string]string)}
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	c.AddHook(m)
	return c, m
}

// Keys lists stored keys in sorted order.
func (m *MemoryRedis) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.match("*")
}

func (m *MemoryRedis) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (m *MemoryRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		return m.process(cmd)
	}
}

func (m *MemoryRedis) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			if err := m.process(cmd); err != nil && err != redis.Nil {
				return err
			}
		}
		return nil
	}
}

func (m *MemoryRedis) match(pattern string) []string {
	var keys []string
	for k := range m.data {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		} else if k == pattern {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func argString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func (m *MemoryRedis) process(cmd redis.Cmder) error {
	args := cmd.Args()
	m.mu.Lock()
	defer m.mu.Unlock()

	switch c := cmd.(type) {
	case *redis.StringCmd:
		if cmd.Name() == "get" && len(args) == 2 {
			v, ok := m.data[argString(args[1])]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(v)
			return nil
		}
	case *redis.StatusCmd:
		switch cmd.Name() {
		case "set":
			if len(args) >= 3 {
				m.data[argString(args[1])] = argString(args[2])
				c.SetVal("OK")
				return nil
			}
		case "ping":
			c.SetVal("PONG")
			return nil
		}
	case *redis.IntCmd:
		if cmd.Name() == "del" {
			var n int64
			for _, a := range args[1:] {
				k := argString(a)
				if _, ok := m.data[k]; ok {
					delete(m.data, k)
					n++
				}
			}
			c.SetVal(n)
			return nil
		}
	case *redis.StringSliceCmd:
		if cmd.Name() == "keys" && len(args) == 2 {
			c.SetVal(m.match(argString(args[1])))
			return nil
		}
	}
	err := fmt.Errorf("memory redis: unsupported command %v", args)
	cmd.SetErr(err)
	return err
}
