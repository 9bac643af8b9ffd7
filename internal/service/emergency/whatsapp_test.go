package emergency

import (
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain local number", "8778741264", "918778741264"},
		{"already has country code", "918778741264", "918778741264"},
		{"plus prefix trusted as-is", "+448778741264", "448778741264"},
		{"formatting stripped", "+91 87787-41264", "918778741264"},
		{"parens and spaces", "(877) 874 1264", "918778741264"},
		{"inner plus ignored", "87787+41264", "918778741264"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePhone(tc.raw, "91"); got != tc.want {
				t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestBuildMessageLinks(t *testing.T) {
	links := BuildMessageLinks("whatsapp", "wa.me", "918778741264", "help me & hurry")

	wantApp := "whatsapp://send?phone=918778741264&text=help+me+%26+hurry"
	if links.AppURL != wantApp {
		t.Fatalf("AppURL = %q, want %q", links.AppURL, wantApp)
	}
	wantWeb := "https://wa.me/918778741264?text=help+me+%26+hurry"
	if links.WebURL != wantWeb {
		t.Fatalf("WebURL = %q, want %q", links.WebURL, wantWeb)
	}
}

func TestMessengerAppLinkSuffices(t *testing.T) {
	var opened []string
	m := &DeepLinkMessenger{
		Scheme:      "whatsapp",
		WebHost:     "wa.me",
		CountryCode: "91",
		Open: func(url string) bool {
			opened = append(opened, url)
			return true
		},
	}

	d := m.Send("8778741264", "test", time.Now())
	if d.ViaWeb {
		t.Fatal("expected app delivery, got web fallback")
	}
	if len(opened) != 1 || opened[0] != d.Links.AppURL {
		t.Fatalf("unexpected open calls: %v", opened)
	}
}

func TestMessengerFallsBackToWeb(t *testing.T) {
	var opened []string
	var slept time.Duration
	m := &DeepLinkMessenger{
		Scheme:        "whatsapp",
		WebHost:       "wa.me",
		CountryCode:   "91",
		FallbackDelay: 500 * time.Millisecond,
		Open: func(url string) bool {
			opened = append(opened, url)
			return len(opened) > 1
		},
		Sleep: func(d time.Duration) { slept = d },
	}

	d := m.Send("8778741264", "test", time.Now())
	if !d.ViaWeb {
		t.Fatal("expected web fallback")
	}
	if slept != 500*time.Millisecond {
		t.Fatalf("fallback delay = %v, want 500ms", slept)
	}
	if len(opened) != 2 || opened[1] != d.Links.WebURL {
		t.Fatalf("unexpected open calls: %v", opened)
	}
}

func TestMessengerHeadlessReturnsLinks(t *testing.T) {
	m := &DeepLinkMessenger{Scheme: "whatsapp", WebHost: "wa.me", CountryCode: "91"}

	d := m.Send("8778741264", "test", time.Now())
	if d.Phone != "918778741264" {
		t.Fatalf("phone = %q", d.Phone)
	}
	if d.Links.AppURL == "" || d.Links.WebURL == "" {
		t.Fatalf("expected both links, got %+v", d.Links)
	}
	if d.ViaWeb {
		t.Fatal("headless delivery must not claim a web attempt")
	}
}
