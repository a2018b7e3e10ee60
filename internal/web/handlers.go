package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		s.opts.Logger.Error("rendering index failed", "error", err)
	}
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LeadID  int64  `json:"lead_id,omitempty"`
}

// handleSubmitForm accepts the contact form, stores the lead, and arms
// the delayed call.
func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{Message: "invalid form data"})
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	phone := strings.TrimSpace(r.PostFormValue("phone"))

	switch {
	case name == "" || email == "" || phone == "":
		writeJSON(w, http.StatusBadRequest, submitResponse{Message: "name, email and phone are required"})
		return
	case !strings.Contains(email, "@"):
		writeJSON(w, http.StatusBadRequest, submitResponse{Message: "invalid email address"})
		return
	}

	id, err := s.opts.Leads.Create(r.Context(), name, email, phone)
	if err != nil {
		s.opts.Logger.Error("creating lead failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, submitResponse{Message: "something went wrong, please try again"})
		return
	}

	s.opts.Scheduler.ScheduleCall(id)
	s.opts.Logger.Info("lead captured", "lead_id", id)
	writeJSON(w, http.StatusOK, submitResponse{
		Success: true,
		Message: "Thanks! We'll give you a call in a couple of minutes.",
		LeadID:  id,
	})
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	list, err := s.opts.Leads.List(r.Context())
	if err != nil {
		s.opts.Logger.Error("listing leads failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := leadsTemplate.Execute(w, list); err != nil {
		s.opts.Logger.Error("rendering leads failed", "error", err)
	}
}

func (s *Server) handleVoiceStart(w http.ResponseWriter, r *http.Request) {
	leadID, ok := s.webhookLeadID(w, r)
	if !ok {
		return
	}
	writeTwiML(w, s.opts.Machine.Entry(r.Context(), leadID))
}

func (s *Server) handleVoiceProcess(w http.ResponseWriter, r *http.Request) {
	leadID, ok := s.webhookLeadID(w, r)
	if !ok {
		return
	}
	callID := r.PostFormValue("CallSid")
	utterance := r.PostFormValue("SpeechResult")
	writeTwiML(w, s.opts.Machine.Turn(r.Context(), leadID, callID, utterance))
}

func (s *Server) handleVoiceEnd(w http.ResponseWriter, r *http.Request) {
	leadID, ok := s.webhookLeadID(w, r)
	if !ok {
		return
	}
	callID := r.PostFormValue("CallSid")
	writeTwiML(w, s.opts.Machine.End(r.Context(), leadID, callID))
}

// webhookLeadID parses the webhook form, enforces the provider
// signature when verification is enabled, and extracts the lead id.
func (s *Server) webhookLeadID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return 0, false
	}

	if s.opts.Verifier != nil {
		fullURL := s.opts.PublicURL + r.URL.RequestURI()
		signature := r.Header.Get("X-Twilio-Signature")
		if !s.opts.Verifier.VerifySignature(fullURL, r.PostForm, signature) {
			s.opts.Logger.Warn("webhook signature rejected", "path", r.URL.Path)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return 0, false
		}
	}

	leadID, err := strconv.ParseInt(r.PathValue("lead_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid lead id", http.StatusBadRequest)
		return 0, false
	}
	return leadID, true
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Digital Growth Solutions</title>
<style>
  body { font-family: -apple-system, sans-serif; max-width: 480px; margin: 60px auto; padding: 0 20px; color: #1a1a2e; }
  h1 { font-size: 1.6em; }
  label { display: block; margin-top: 16px; font-weight: 600; }
  input { width: 100%; padding: 10px; margin-top: 6px; border: 1px solid #ccc; border-radius: 6px; }
  button { margin-top: 24px; width: 100%; padding: 12px; background: #3b5bdb; color: #fff; border: 0; border-radius: 6px; font-size: 1em; cursor: pointer; }
  #result { margin-top: 16px; }
</style>
</head>
<body>
<h1>Grow your business with us</h1>
<p>Leave your details and one of our consultants will call you within a couple of minutes.</p>
<form id="contact" method="post" action="/submit-form">
  <label for="name">Name</label>
  <input id="name" name="name" required>
  <label for="email">Email</label>
  <input id="email" name="email" type="email" required>
  <label for="phone">Phone</label>
  <input id="phone" name="phone" type="tel" placeholder="+1 555 000 0000" required>
  <button type="submit">Call me</button>
</form>
<p id="result"></p>
<script>
document.getElementById('contact').addEventListener('submit', async function (e) {
  e.preventDefault();
  const resp = await fetch('/submit-form', { method: 'POST', body: new URLSearchParams(new FormData(this)) });
  const data = await resp.json();
  document.getElementById('result').textContent = data.message;
  if (data.success) this.reset();
});
</script>
</body>
</html>
`))

var leadsTemplate = template.Must(template.New("leads").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Leads</title>
<style>
  body { font-family: -apple-system, sans-serif; max-width: 900px; margin: 40px auto; padding: 0 20px; color: #1a1a2e; }
  table { border-collapse: collapse; width: 100%; }
  th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #ddd; }
  .yes { color: #2b8a3e; font-weight: 600; }
  .no { color: #868e96; }
</style>
</head>
<body>
<h1>Leads</h1>
<table>
  <tr><th>ID</th><th>Name</th><th>Email</th><th>Phone</th><th>Called</th><th>Completed</th><th>Interested</th><th>Created</th></tr>
  {{range .}}
  <tr>
    <td>{{.ID}}</td>
    <td>{{.Name}}</td>
    <td>{{.Email}}</td>
    <td>{{.Phone}}</td>
    <td>{{if .CallScheduled}}<span class="yes">yes</span>{{else}}<span class="no">no</span>{{end}}</td>
    <td>{{if .CallCompleted}}<span class="yes">yes</span>{{else}}<span class="no">no</span>{{end}}</td>
    <td>{{if .Interested}}<span class="yes">yes</span>{{else}}<span class="no">no</span>{{end}}</td>
    <td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td>
  </tr>
  {{end}}
</table>
</body>
</html>
`))
