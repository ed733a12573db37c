package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestHookChainThreadsContext(t *testing.T) {
	started := time.Now()
	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return WithStartTime(ctx, started), km, data, nil
			},
		},
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return WithTraceID(ctx, ExtractTraceID(km)), km, data, nil
			},
		},
	)

	msg := kafka.Message{
		Topic:   "sales.events",
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-123")}},
	}
	ctx, _, _, err := chain.BeforeHandle(context.Background(), "sales.events", msg, []byte(`{}`))
	if err != nil {
		t.Fatalf("before: %v", err)
	}

	if ts, ok := StartTime(ctx); !ok || !ts.Equal(started) {
		t.Fatalf("start time = %v, %v", ts, ok)
	}
	if got := TraceID(ctx); got != "t-123" {
		t.Fatalf("trace id = %q", got)
	}
}

func TestHookChainBeforeErrorFansOut(t *testing.T) {
	reject := errors.New("payload rejected")
	var onErrCalls int

	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return ctx, km, data, reject
			},
			Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) {
				if errors.Is(err, reject) {
					onErrCalls++
				}
			},
		},
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				t.Fatal("second hook ran after the first rejected")
				return ctx, km, data, nil
			},
			Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) {
				if errors.Is(err, reject) {
					onErrCalls++
				}
			},
		},
	)

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if !errors.Is(err, reject) {
		t.Fatalf("err = %v, want rejection", err)
	}
	if onErrCalls != 2 {
		t.Fatalf("OnError fan-out reached %d hooks, want 2", onErrCalls)
	}
}

func TestHookChainRecoversPanics(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	if err == nil {
		t.Fatal("panicking hook produced no error")
	}
	var he *HookError
	if !errors.As(err, &he) || he.Code != "hook_panic" {
		t.Fatalf("err = %v, want hook_panic", err)
	}

	// After and OnError panics must not escape either.
	chain = NewHookChain(HookFuncs{
		After: func(context.Context, string, kafka.Message, []byte, error) { panic("after") },
		Err:   func(context.Context, string, kafka.Message, []byte, error) { panic("err") },
	})
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
	chain.OnError(context.Background(), "t", kafka.Message{}, nil, errors.New("x"))
}

func TestHookChainAfterRunsInReverse(t *testing.T) {
	var order []string
	hook := func(name string) ConsumerHook {
		return HookFuncs{
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, name)
			},
		}
	}

	chain := NewHookChain(hook("first"), nil, hook("second"))
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("after order = %v", order)
	}
}

func TestTraceIDAccessors(t *testing.T) {
	ctx := context.Background()
	if got := TraceID(ctx); got != "" {
		t.Fatalf("empty context trace id = %q", got)
	}
	if ctx2 := WithTraceID(ctx, ""); ctx2 != ctx {
		t.Fatal("empty trace id should not allocate a context")
	}
	if got := ExtractTraceID(kafka.Message{}); got != "" {
		t.Fatalf("no header trace id = %q", got)
	}
}
