package transcript

import (
	"errors"
	"testing"

	"github.com/sipeed/polychat/pkg/attachments"
)

func TestAppendKeepsInsertionOrder(t *testing.T) {
	s := NewStore(nil)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Append(Message{ID: id, Role: RoleUser, Content: id}); err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}
	msgs := s.Messages()
	if len(msgs) != 3 || msgs[0].ID != "a" || msgs[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", msgs)
	}
	last, ok := s.Last()
	if !ok || last.ID != "c" {
		t.Fatalf("Last = %+v, %v", last, ok)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := NewStore(nil)
	if err := s.Append(Message{Role: RoleUser}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("err = %v, want ErrMissingID", err)
	}
	if err := s.Append(Message{ID: "x", Role: "bot"}); !errors.Is(err, ErrBadRole) {
		t.Fatalf("err = %v, want ErrBadRole", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestStoredMessagesAreIsolated(t *testing.T) {
	s := NewStore(nil)
	atts := []attachments.Attachment{{Type: attachments.TypeImage, URL: "u1"}}
	if err := s.Append(Message{ID: "m", Role: RoleUser, Attachments: atts}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	atts[0].URL = "mutated"

	got := s.Messages()
	got[0].Attachments[0].URL = "also-mutated"
	got[0].Content = "edited"

	again := s.Messages()
	if again[0].Attachments[0].URL != "u1" || again[0].Content != "" {
		t.Fatalf("stored message changed: %+v", again[0])
	}
}

func TestOnAppendNotifies(t *testing.T) {
	s := NewStore(nil)
	var ids []string
	cancel := s.OnAppend(func(m Message) { ids = append(ids, m.ID) })
	_ = s.Append(Message{ID: "1", Role: RoleUser})
	cancel()
	_ = s.Append(Message{ID: "2", Role: RoleAssistant})
	if len(ids) != 1 || ids[0] != "1" {
		t.Fatalf("ids = %v, want [1]", ids)
	}
}

func TestCloseReleasesPreviews(t *testing.T) {
	previews := attachments.NewPreviewStore()
	rec := previews.Save("a.png", "image/png", []byte{1})
	s := NewStore(previews)
	_ = s.Append(Message{
		ID:   "m",
		Role: RoleUser,
		Attachments: []attachments.Attachment{
			{Type: attachments.TypeImage, URL: rec.Handle()},
			{Type: attachments.TypeImage, URL: "data:image/png;base64,AA=="},
		},
	})

	if n := s.Close(); n != 1 {
		t.Fatalf("released = %d, want 1", n)
	}
	if previews.Len() != 0 {
		t.Fatalf("previews left = %d", previews.Len())
	}
	if err := s.Append(Message{ID: "late", Role: RoleUser}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if n := s.Close(); n != 0 {
		t.Fatalf("second Close released %d", n)
	}
}
