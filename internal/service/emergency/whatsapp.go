package emergency

import (
	"net/url"
	"strings"
	"time"

	"github.com/msfrancis/mediguide/backend/pkg/logger"
)

// NormalizePhone reduces a raw phone number to the digit form the messaging
// deep-link expects: strip everything but digits and a leading plus; a
// leading plus is dropped; a number without the destination country code
// gets the default one prepended.
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	phone := b.String()

	if strings.HasPrefix(phone, "+") {
		return phone[1:]
	}
	if !strings.HasPrefix(phone, countryCode) {
		return countryCode + phone
	}
	return phone
}

// MessageLinks are the two delivery URLs for one messaging attempt.
type MessageLinks struct {
	AppURL string `json:"appUrl"`
	WebURL string `json:"webUrl"`
}

// BuildMessageLinks renders the app deep-link and its web fallback for a
// normalized phone number and message text.
func BuildMessageLinks(scheme, webHost, phone, text string) MessageLinks {
	encoded := url.QueryEscape(text)
	return MessageLinks{
		AppURL: scheme + "://send?phone=" + phone + "&text=" + encoded,
		WebURL: "https://" + webHost + "/" + phone + "?text=" + encoded,
	}
}

// Opener attempts to navigate to a URL, reporting whether navigation took.
type Opener func(url string) bool

// Delivery records which link a messaging attempt ended up using.
type Delivery struct {
	Links   MessageLinks `json:"links"`
	Phone   string       `json:"phone"`
	ViaWeb  bool         `json:"viaWeb"`
	Text    string       `json:"-"`
	Attempt time.Time    `json:"attemptedAt"`
}

// DeepLinkMessenger delivers alert text through the messaging app: the app
// scheme is tried first, and the web link takes over after a short delay if
// the app link did not navigate away.
type DeepLinkMessenger struct {
	Scheme        string
	WebHost       string
	CountryCode   string
	FallbackDelay time.Duration

	Open  Opener
	Sleep func(time.Duration)
}

// Send normalizes the phone, builds both links and runs the app-then-web
// policy. It never fails: the web link always remains available to the
// caller through the returned delivery.
func (m *DeepLinkMessenger) Send(rawPhone, text string, now time.Time) Delivery {
	phone := NormalizePhone(rawPhone, m.CountryCode)
	links := BuildMessageLinks(m.Scheme, m.WebHost, phone, text)
	delivery := Delivery{Links: links, Phone: phone, Text: text, Attempt: now}

	open := m.Open
	if open == nil {
		// Headless deployment: the caller hands the links to the client.
		return delivery
	}

	if open(links.AppURL) {
		return delivery
	}

	sleep := m.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(m.FallbackDelay)

	delivery.ViaWeb = true
	if !open(links.WebURL) {
		logger.Warnf("[emergency] web fallback did not navigate for %s", phone)
	}
	return delivery
}
