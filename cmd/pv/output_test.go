package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/and161185/promptvault/internal/access"
	"github.com/and161185/promptvault/internal/crypto/clientcrypto"
	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/model"
)

func Test_parseItemID(t *testing.T) {
	t.Parallel()
	if id, err := parseItemID(" 42 "); err != nil || id != 42 {
		t.Fatalf("parse 42: %v %v", id, err)
	}
	for _, s := range []string{"0", "-1", "x", ""} {
		if _, err := parseItemID(s); !errors.Is(err, errs.ErrInvalidInput) {
			t.Fatalf("%q: want ErrInvalidInput, got %v", s, err)
		}
	}
}

func Test_parseRating(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"1", "5"} {
		if _, err := parseRating(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	for _, s := range []string{"0", "6", "300", "three"} {
		if _, err := parseRating(s); err == nil {
			t.Fatalf("%s: want error", s)
		}
	}
}

func Test_parseCategory_AnyCase(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"writing", "WRITING", " Writing "} {
		c, err := parseCategory(s)
		if err != nil || c != model.CategoryWriting {
			t.Fatalf("%q: %v %v", s, c, err)
		}
	}
	if _, err := parseCategory("poetry"); err == nil || !strings.Contains(err.Error(), "Marketing") {
		t.Fatalf("unknown category should list the choices: %v", err)
	}
}

func Test_parsePrice(t *testing.T) {
	t.Parallel()
	a, err := parsePrice("1.23")
	if err != nil || a != 123000000 {
		t.Fatalf("1.23: %d %v", a, err)
	}
	if a.String() != "1.23000000" {
		t.Fatalf("format: %s", a)
	}
	for _, s := range []string{"-1", "abc", "NaN"} {
		if _, err := parsePrice(s); !errors.Is(err, errs.ErrInvalidInput) {
			t.Fatalf("%q: want ErrInvalidInput, got %v", s, err)
		}
	}
}

func Test_itemViews_CarryVerdict(t *testing.T) {
	t.Parallel()
	items := []model.Item{
		{ID: 1, Title: "own", Author: author, Price: 10},
		{ID: 2, Title: "bought", Author: buyer, Price: 10},
		{ID: 3, Title: "locked", Author: buyer, Price: 10},
	}
	views := itemViews(author, access.NewIDSet(2), items)
	want := []string{"owner", "purchased", "locked"}
	for i, v := range views {
		if v.Access != want[i] {
			t.Fatalf("item %d: access %s, want %s", v.ID, v.Access, want[i])
		}
	}
	if !views[2].CanPurchase || views[0].CanPurchase {
		t.Fatalf("purchase offers wrong: %+v", views)
	}

	var buf bytes.Buffer
	printJSON(&buf, views[0])
	var back map[string]any
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("printJSON must emit valid json: %v", err)
	}
	if back["price"] != "0.00000010" {
		t.Fatalf("price: %v", back["price"])
	}
}

func Test_masterKey_DeviceAndPassphrase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	k1, err := masterKey(dir, "")
	if err != nil || len(k1) != clientcrypto.KeyLen {
		t.Fatalf("device key: %v len=%d", err, len(k1))
	}
	k2, _ := masterKey(dir, "")
	if !bytes.Equal(k1, k2) {
		t.Fatalf("device key must be stable")
	}

	p1, err := masterKey(dir, "correct horse")
	if err != nil {
		t.Fatalf("passphrase key: %v", err)
	}
	p2, _ := masterKey(dir, "correct horse")
	p3, _ := masterKey(dir, "wrong horse")
	if !bytes.Equal(p1, p2) || bytes.Equal(p1, p3) || bytes.Equal(p1, k1) {
		t.Fatalf("passphrase keys must be stable and distinct")
	}
}

func Test_readOrCreate_RejectsWrongLength(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "k")
	if _, err := readOrCreate(p, 4); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := readOrCreate(p, 8); err == nil {
		t.Fatalf("want length error")
	}
}

func Test_terminal_Prompts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var prompts bytes.Buffer
	term := newTerminal(strings.NewReader("  Bob \n\nlast"), &prompts)

	name, err := term.PromptNonEmpty(ctx, "Display name")
	if err != nil || name != "Bob" {
		t.Fatalf("name: %q %v", name, err)
	}
	if _, ok := term.PromptOptional(ctx, "Email"); ok {
		t.Fatalf("blank optional answer must be absent")
	}
	if s, err := term.PromptNonEmpty(ctx, "x"); err != nil || s != "last" {
		t.Fatalf("unterminated last line: %q %v", s, err)
	}
	if _, err := term.PromptNonEmpty(ctx, "x"); !errors.Is(err, errs.ErrCancelled) {
		t.Fatalf("end of input must cancel, got %v", err)
	}
	if !strings.Contains(prompts.String(), "Display name: ") {
		t.Fatalf("prompt not shown: %q", prompts.String())
	}
}

func Test_tokenProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	p := tokenProvider{term: newTerminal(strings.NewReader(""), &bytes.Buffer{})}
	if _, err := p.Authenticate(ctx); !errors.Is(err, errs.ErrCancelled) {
		t.Fatalf("no token: want ErrCancelled, got %v", err)
	}

	p.token = "not-a-jwt"
	if _, err := p.Authenticate(ctx); err == nil || errors.Is(err, errs.ErrCancelled) {
		t.Fatalf("garbage token must be a hard failure, got %v", err)
	}
}
