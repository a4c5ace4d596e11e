package redis

import (
	"context"
	"testing"
	"time"

	"answerlab/internal/app"
	"answerlab/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestKeyValueStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewKeyValueStore(newClient(mr), "answerlab:", 0)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "slot"); err != nil || ok {
		t.Fatalf("expected missing slot, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "slot", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("answerlab:slot") {
		t.Fatalf("expected prefixed redis key to be set")
	}
	value, ok, err := store.Get(ctx, "slot")
	if err != nil || !ok || value != "[]" {
		t.Fatalf("expected stored value, got %q ok=%v err=%v", value, ok, err)
	}
}

func TestKeyValueStoreAppliesTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewKeyValueStore(newClient(mr), "", time.Minute)
	if err := store.Set(context.Background(), "slot", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("slot"); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := store.Get(context.Background(), "slot"); ok {
		t.Fatalf("expected slot expired")
	}
}

func TestKeyValueStoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	store := NewKeyValueStore(client, "", 0)
	if _, _, err := store.Get(context.Background(), "slot"); err == nil {
		t.Fatalf("expected error from closed redis")
	}
}

func TestSheetStoreSurvivesRestartOnRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	kv := NewKeyValueStore(newClient(mr), "answerlab:", 0)
	sheets := app.NewSheetStore(ctx, kv)

	sheet, err := sheets.Create(ctx, domain.SheetPayload{Name: "Quiz A", QuestionCount: 2, ChoiceCount: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sheets.SetAnswer(ctx, sheet.ID, 1, domain.RoleKey, domain.Choice(4))

	reloaded := app.NewSheetStore(ctx, NewKeyValueStore(newClient(mr), "answerlab:", 0))
	got, ok := reloaded.Get(sheet.ID)
	if !ok {
		t.Fatalf("expected sheet after restart")
	}
	if got.Answers[1].KeyAnswer == nil || *got.Answers[1].KeyAnswer != 4 {
		t.Fatalf("expected key answer 4, got %+v", got.Answers[1])
	}

	mr.Set("answerlab:"+app.DefaultStorageKey, "garbage")
	if empty := app.NewSheetStore(ctx, kv); len(empty.Sheets()) != 0 {
		t.Fatalf("expected corrupt slot to load as empty")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
