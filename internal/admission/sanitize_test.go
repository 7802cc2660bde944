package admission

import "testing"

func TestSanitize_CollapsesWhitespace(t *testing.T) {
	got := sanitize("hello   \t  world\r\nagain")
	want := "hello world again"
	if got != want {
		t.Errorf("sanitize = %q, want %q", got, want)
	}
}

func TestSanitize_ReplacesMentionsAndLinks(t *testing.T) {
	got := sanitize("hey <@123456> check <#999> and visit https://example.com/path?x=1")
	want := "hey someone check channel and visit link"
	if got != want {
		t.Errorf("sanitize = %q, want %q", got, want)
	}
}

func TestSanitize_ReplacesRoleAndEmoji(t *testing.T) {
	got := sanitize("ping <@&42> look <:pepe:123456789> <a:wiggle:987654321>")
	want := "ping role look emoji emoji"
	if got != want {
		t.Errorf("sanitize = %q, want %q", got, want)
	}
}

func TestSanitize_StripsMarkup(t *testing.T) {
	got := sanitize("**bold** _italic_ ~~strike~~ ||spoiler|| `code`\n> quoted")
	want := "bold italic strike spoiler code quoted"
	if got != want {
		t.Errorf("sanitize = %q, want %q", got, want)
	}
}

func TestSanitize_NormalizesDecorativeCharacters(t *testing.T) {
	got := sanitize("wait… it's—really “great”")
	want := `wait... it's-really "great"`
	if got != want {
		t.Errorf("sanitize = %q, want %q", got, want)
	}
}

func TestSanitize_TruncatesToCeilingWithEllipsis(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	got := sanitize(string(long))
	gotRunes := []rune(got)
	if len(gotRunes) != sanitizedCeiling+1 {
		t.Fatalf("len(sanitize(...)) = %d, want %d", len(gotRunes), sanitizedCeiling+1)
	}
	if gotRunes[len(gotRunes)-1] != '…' {
		t.Error("expected truncated content to end with an ellipsis")
	}
}

func TestSanitize_StripsNonPrintable(t *testing.T) {
	got := sanitize("hello\x00world\x07")
	if got != "helloworld" {
		t.Errorf("sanitize = %q, want %q", got, "helloworld")
	}
}
