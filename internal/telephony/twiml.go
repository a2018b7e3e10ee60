package telephony

import (
	"fmt"
	"strings"
)

// DefaultVoice is the Twilio neural voice used for native
// speech-from-text.
const DefaultVoice = "Polly.Joanna-Neural"

// Response builds a TwiML voice response document.
type Response struct {
	sb strings.Builder
}

// NewResponse creates an empty TwiML response.
func NewResponse() *Response {
	r := &Response{}
	r.sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<Response>")
	return r
}

// Say speaks text with the default neural voice.
func (r *Response) Say(text string) *Response {
	r.sb.WriteString(fmt.Sprintf(`<Say voice="%s" language="en-US">%s</Say>`,
		escapeXML(DefaultVoice), escapeXML(text)))
	return r
}

// Play plays a pre-rendered audio file.
func (r *Response) Play(audioURL string) *Response {
	r.sb.WriteString(fmt.Sprintf(`<Play>%s</Play>`, escapeXML(audioURL)))
	return r
}

// Gather collects a spoken utterance and POSTs the recognition result
// to action. timeoutSec bounds initial silence; speechTimeoutSec bounds
// the pause that ends an utterance. The nested verbs produced by fn are
// spoken while gathering, so the caller can interrupt them.
func (r *Response) Gather(action string, timeoutSec, speechTimeoutSec int, fn func(*Gather)) *Response {
	r.sb.WriteString(fmt.Sprintf(
		`<Gather input="speech" action="%s" method="POST" timeout="%d" speechTimeout="%d">`,
		escapeXML(action), timeoutSec, speechTimeoutSec))
	if fn != nil {
		fn(&Gather{r: r})
	}
	r.sb.WriteString(`</Gather>`)
	return r
}

// Redirect instructs the provider to request the next document.
func (r *Response) Redirect(target string) *Response {
	r.sb.WriteString(fmt.Sprintf(`<Redirect method="POST">%s</Redirect>`, escapeXML(target)))
	return r
}

// Hangup terminates the call.
func (r *Response) Hangup() *Response {
	r.sb.WriteString(`<Hangup/>`)
	return r
}

// String renders the document.
func (r *Response) String() string {
	return r.sb.String() + "</Response>"
}

// Gather scopes verbs nested inside a <Gather> element.
type Gather struct {
	r *Response
}

// Say speaks text inside the gather.
func (g *Gather) Say(text string) *Gather {
	g.r.Say(text)
	return g
}

// Play plays audio inside the gather.
func (g *Gather) Play(audioURL string) *Gather {
	g.r.Play(audioURL)
	return g
}

// escapeXML escapes special characters for XML content.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
