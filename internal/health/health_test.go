package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("rpc", func(_ context.Context) Status {
		return Status{Name: "rpc", Healthy: true}
	})
	r.Register("wallet", func(_ context.Context) Status {
		return Status{Name: "wallet", Healthy: true, Detail: "ok"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("all-healthy registry should report healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("rpc", func(_ context.Context) Status {
		return Status{Name: "rpc", Healthy: true}
	})
	r.Register("wallet", func(_ context.Context) Status {
		return Status{Name: "wallet", Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Detail != "connection refused" {
		t.Fatalf("expected detail 'connection refused', got %q", statuses[1].Detail)
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	// Register concurrently
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Register("checker", func(_ context.Context) Status {
				return Status{Name: "checker", Healthy: true}
			})
		}(i)
	}

	// Check concurrently
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}

	wg.Wait()
}

func TestRegistryFillsName(t *testing.T) {
	r := NewRegistry()
	r.Register("rpc", func(_ context.Context) Status {
		return Status{Healthy: true}
	})

	_, statuses := r.CheckAll(context.Background())
	if statuses[0].Name != "rpc" {
		t.Fatalf("expected name rpc, got %q", statuses[0].Name)
	}
}

func TestRegistryBoundsEachCheck(t *testing.T) {
	r := NewRegistry()
	r.timeout = 10 * time.Millisecond
	r.Register("rpc", Ping("rpc", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("hung checker should report unhealthy")
	}
	if statuses[0].Detail != context.DeadlineExceeded.Error() {
		t.Fatalf("unexpected detail %q", statuses[0].Detail)
	}
}

func TestPing(t *testing.T) {
	ok := Ping("rpc", func(context.Context) error { return nil })(context.Background())
	if !ok.Healthy || ok.Name != "rpc" {
		t.Fatalf("expected healthy rpc, got %+v", ok)
	}

	bad := Ping("rpc", func(context.Context) error { return errors.New("connection refused") })(context.Background())
	if bad.Healthy || bad.Detail != "connection refused" {
		t.Fatalf("expected unhealthy rpc, got %+v", bad)
	}
}

func TestAccount(t *testing.T) {
	st := Account("wallet", func() string { return "0xabc" })(context.Background())
	if !st.Healthy || st.Detail != "0xabc" {
		t.Fatalf("expected healthy wallet, got %+v", st)
	}

	st = Account("wallet", func() string { return "" })(context.Background())
	if st.Healthy {
		t.Fatal("disconnected wallet should be unhealthy")
	}
}
