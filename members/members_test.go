package members

import (
	"sync"
	"testing"
)

// --- StaticRoster ---

func TestStaticRoster_IsAdmin(t *testing.T) {
	r := NewStaticRoster(StaticRosterConfig{
		Admins:  []string{"alice@example.com"},
		Writers: []string{"bob@example.com"},
	})

	if !r.IsAdmin("alice@example.com") {
		t.Error("alice should be admin")
	}
	if r.IsAdmin("bob@example.com") {
		t.Error("bob is a writer, not an admin")
	}
	if r.IsAdmin("carol@example.com") {
		t.Error("carol is not a member")
	}
}

func TestStaticRoster_CanWrite(t *testing.T) {
	r := NewStaticRoster(StaticRosterConfig{
		Admins:  []string{"alice@example.com"},
		Writers: []string{"bob@example.com"},
	})

	if !r.CanWrite("alice@example.com") {
		t.Error("admins can write")
	}
	if !r.CanWrite("bob@example.com") {
		t.Error("writers can write")
	}
	if r.CanWrite("carol@example.com") {
		t.Error("non-members cannot write when open join is off")
	}
	if r.CanWrite("") {
		t.Error("empty identity cannot write")
	}
}

func TestStaticRoster_OpenJoin(t *testing.T) {
	r := NewStaticRoster(StaticRosterConfig{
		Admins:   []string{"alice@example.com"},
		OpenJoin: true,
	})

	if !r.CanWrite("anyone@example.com") {
		t.Error("open join should let anyone write")
	}
	if r.IsAdmin("anyone@example.com") {
		t.Error("open join must not grant admin")
	}
	if r.CanWrite("") {
		t.Error("empty identity cannot write even with open join")
	}
}

func TestStaticRoster_BlankEntriesIgnored(t *testing.T) {
	r := NewStaticRoster(StaticRosterConfig{
		Admins:  []string{"", "  ", "alice@example.com"},
		Writers: []string{"  bob@example.com  "},
	})

	if len(r.Admins()) != 1 {
		t.Errorf("expected 1 admin, got %v", r.Admins())
	}
	if !r.CanWrite("bob@example.com") {
		t.Error("whitespace around entries should be trimmed")
	}
}

func TestStaticRoster_ExactMatch(t *testing.T) {
	r := NewStaticRoster(StaticRosterConfig{
		Admins: []string{"Alice@Example.com"},
	})

	// Identities are opaque: no case folding
	if r.IsAdmin("alice@example.com") {
		t.Error("identity comparison must be exact")
	}
	if !r.IsAdmin("Alice@Example.com") {
		t.Error("exact identity should match")
	}
}

// --- MemoryRoster ---

func TestMemoryRoster_GrantRevoke(t *testing.T) {
	r := NewMemoryRoster()
	defer r.Close()

	if err := r.GrantAdmin("alice@example.com"); err != nil {
		t.Fatalf("GrantAdmin error: %v", err)
	}
	if !r.IsAdmin("alice@example.com") {
		t.Error("alice should be admin after grant")
	}

	if err := r.RevokeAdmin("alice@example.com"); err != nil {
		t.Fatalf("RevokeAdmin error: %v", err)
	}
	if r.IsAdmin("alice@example.com") {
		t.Error("alice should not be admin after revoke")
	}
}

func TestMemoryRoster_GrantInvalid(t *testing.T) {
	r := NewMemoryRoster()
	defer r.Close()

	if err := r.GrantAdmin(""); err != ErrInvalidIdentity {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
	if err := r.GrantWrite("  "); err != ErrInvalidIdentity {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestMemoryRoster_CanWrite(t *testing.T) {
	r := NewMemoryRoster()
	defer r.Close()

	r.GrantWrite("bob@example.com")
	r.GrantAdmin("alice@example.com")

	if !r.CanWrite("bob@example.com") {
		t.Error("writer should write")
	}
	if !r.CanWrite("alice@example.com") {
		t.Error("admin should write")
	}
	if r.CanWrite("carol@example.com") {
		t.Error("stranger should not write")
	}

	r.SetOpenJoin(true)
	if !r.CanWrite("carol@example.com") {
		t.Error("open join should admit strangers")
	}
}

func TestMemoryRoster_RevokeAbsent(t *testing.T) {
	r := NewMemoryRoster()
	defer r.Close()

	// Should not error
	if err := r.RevokeAdmin("nonexistent"); err != nil {
		t.Errorf("RevokeAdmin of absent identity should not error: %v", err)
	}
	if err := r.RevokeWrite("nonexistent"); err != nil {
		t.Errorf("RevokeWrite of absent identity should not error: %v", err)
	}
}

func TestMemoryRoster_Closed(t *testing.T) {
	r := NewMemoryRoster()
	r.GrantAdmin("alice@example.com")
	r.Close()

	if err := r.GrantAdmin("bob@example.com"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if r.IsAdmin("alice@example.com") {
		t.Error("closed roster should deny all capability checks")
	}
	if r.CanWrite("alice@example.com") {
		t.Error("closed roster should deny writes")
	}
}

func TestMemoryRoster_CloseIdempotent(t *testing.T) {
	r := NewMemoryRoster()

	if err := r.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestMemoryRoster_ConcurrentAccess(t *testing.T) {
	r := NewMemoryRoster()
	defer r.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.GrantWrite("bob@example.com")
			r.RevokeWrite("bob@example.com")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.CanWrite("bob@example.com")
			r.IsAdmin("bob@example.com")
		}
	}()

	wg.Wait()
}

// --- Validation ---

func TestValidateIdentity(t *testing.T) {
	tests := []struct {
		name     string
		identity string
		wantErr  error
	}{
		{"valid email", "alice@example.com", nil},
		{"valid handle", "alice", nil},
		{"empty", "", ErrInvalidIdentity},
		{"whitespace only", "   ", ErrInvalidIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentity(tt.identity)
			if err != tt.wantErr {
				t.Errorf("ValidateIdentity(%q) = %v, want %v", tt.identity, err, tt.wantErr)
			}
		})
	}
}
