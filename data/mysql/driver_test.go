package mysql

import (
	"context"
	"testing"

	"github.com/ncobase/spacearc/data/config"
)

func TestDriverName(t *testing.T) {
	d := &driver{}
	if d.Name() != "mysql" {
		t.Errorf("expected driver name 'mysql', got %q", d.Name())
	}
}

func TestConnectInvalidConfig(t *testing.T) {
	d := &driver{}

	_, err := d.Connect(context.Background(), "not-a-config")
	if err == nil {
		t.Error("expected error for invalid configuration type")
	}
}

func TestConnectEmptySource(t *testing.T) {
	d := &driver{}

	_, err := d.Connect(context.Background(), &config.DBNode{})
	if err == nil {
		t.Error("expected error for empty connection source")
	}
}

func TestCloseInvalidConnection(t *testing.T) {
	d := &driver{}

	err := d.Close("not-a-connection")
	if err == nil {
		t.Error("expected error for invalid connection type")
	}
}

func TestPingInvalidConnection(t *testing.T) {
	d := &driver{}

	err := d.Ping(context.Background(), "not-a-connection")
	if err == nil {
		t.Error("expected error for invalid connection type")
	}
}
