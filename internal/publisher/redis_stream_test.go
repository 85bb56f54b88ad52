package publisher

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fortuna/headshot/internal/patch"
)

func TestRecordAppendsToStream(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	p, err := NewRedisPublisher(redisURL)
	if err != nil {
		t.Fatalf("NewRedisPublisher: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	before, _ := p.client.XLen(ctx, PatchStream).Result()

	ev := patch.Event{PassID: "p1", Outcome: patch.Patched, Name: "Salah", Team: "Liverpool", PhotoCode: "118748", At: time.Now()}
	if err := p.Record(ctx, ev); err != nil {
		t.Fatalf("Record: %v", err)
	}

	msgs, err := p.client.XRevRangeN(ctx, PatchStream, "+", "-", 1).Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("XRevRangeN = %v, %v", msgs, err)
	}
	if msgs[0].Values["type"] != string(patch.Patched) {
		t.Errorf("type = %v", msgs[0].Values["type"])
	}
	var got patch.Event
	if err := json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if got.Name != "Salah" || got.PhotoCode != "118748" {
		t.Errorf("decoded event = %+v", got)
	}

	after, _ := p.client.XLen(ctx, PatchStream).Result()
	if after < before+1 && after < streamMaxLen {
		t.Errorf("stream length %d -> %d", before, after)
	}
}
