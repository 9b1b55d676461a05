package store

import (
	"context"
	"testing"
	"time"

	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/mood"
)

func sampleDream(id, user string, at time.Time) domain.Dream {
	style := "watercolor"
	interp := "A threshold between two phases of life."
	return domain.Dream{
		ID:             id,
		UserID:         user,
		CreatedAt:      at,
		Title:          "The Locked Door",
		Transcription:  "I was standing in front of a door...",
		Moods:          []domain.MoodTag{mood.Tag(domain.MoodConfused, 0.7)},
		Symbols:        []domain.DreamSymbol{{Name: "door", Emoji: "🚪", OccurrenceCount: 1}},
		Interpretation: &interp,
		ArtStyle:       &style,
	}
}

func TestDreamModelDropsArtStyle(t *testing.T) {
	d := sampleDream("d1", "u1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	model, err := dreamToModel(RemoteDream(d))
	if err != nil {
		t.Fatalf("to model: %v", err)
	}
	back, err := dreamFromModel(model)
	if err != nil {
		t.Fatalf("from model: %v", err)
	}
	if back.ArtStyle != nil {
		t.Fatalf("art style must not reach the remote row")
	}
	if back.Moods[0].Gradient != mood.GradientFor(domain.MoodConfused) || back.Symbols[0].Emoji != "🚪" {
		t.Fatalf("jsonb fields lost data: %+v", back)
	}
	if d.ArtStyle == nil {
		t.Fatalf("RemoteDream must not mutate the caller's dream")
	}
}

func TestDreamFromModelEmptyJSON(t *testing.T) {
	back, err := dreamFromModel(DreamModel{ID: "d1"})
	if err != nil {
		t.Fatalf("from model: %v", err)
	}
	if back.Moods == nil || back.Symbols == nil {
		t.Fatalf("empty jsonb should decode to empty slices")
	}
}

func TestMemoryStoreDreamLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.SaveDream(ctx, sampleDream(id, "u1", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	_ = s.SaveDream(ctx, sampleDream("other", "u2", base))

	list, err := s.ListDreams(ctx, "u1")
	if err != nil || len(list) != 3 || list[0].ID != "new" || list[2].ID != "old" {
		t.Fatalf("expected newest first for u1, got %+v err=%v", list, err)
	}
	if _, ok, _ := s.GetDream(ctx, "u1", "other"); ok {
		t.Fatalf("dreams must be scoped to their owner")
	}

	_ = s.AppendMessage(ctx, "mid", domain.ConversationMessage{Role: domain.RoleUser, Content: "why a door?"})
	_ = s.AppendMessage(ctx, "mid", domain.ConversationMessage{Role: domain.RoleAssistant, Content: "Doors mark change."})
	msgs, _ := s.ListMessages(ctx, "mid", 1)
	if len(msgs) != 1 || msgs[0].Role != domain.RoleAssistant {
		t.Fatalf("limit should keep the latest turns: %+v", msgs)
	}

	if err := s.DeleteDream(ctx, "u1", "mid"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if msgs, _ := s.ListMessages(ctx, "mid", 0); len(msgs) != 0 {
		t.Fatalf("conversation should be removed with the dream")
	}
}

func TestUserFromModelDefaults(t *testing.T) {
	u := userFromModel(UserModel{ID: "u1", InterpretationStyle: "freudian"})
	if u.SubscriptionTier != domain.TierFree || u.InterpretationStyle != domain.StyleMixed {
		t.Fatalf("unexpected defaults: %+v", u)
	}
}
