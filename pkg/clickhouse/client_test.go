package clickhouse

import (
	"strings"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "equitypulse",
		User:         "default",
		Password:     "secret",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  30 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})

	if !strings.HasPrefix(dsn, "clickhouse://default:secret@ch:9000/equitypulse?") {
		t.Fatalf("unexpected prefix: %s", dsn)
	}
	for _, want := range []string{"dial_timeout=5s", "max_execution_time=30", "async_insert=1", "wait_for_async_insert=1"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %s missing %s", dsn, want)
		}
	}
}

func TestBuildDSNHTTPWithoutCredentials(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "default", UseHTTP: true})
	if dsn != "http://ch:8123/default" {
		t.Fatalf("unexpected dsn %s", dsn)
	}
}
