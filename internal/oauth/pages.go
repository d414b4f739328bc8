package oauth

import (
	"fmt"
	"html"
	"net/http"
)

// setSecurityHeaders sets the headers every HTML page carries.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; form-action 'self'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

const pageStyle = `
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f4f5f7;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #1f2328;
        }
        .card {
            background: #fff;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 4px 24px rgba(0, 0, 0, 0.08);
            width: 100%%;
            max-width: 420px;
        }
        h1 { font-size: 1.4rem; margin-bottom: 0.5rem; }
        p { color: #57606a; margin-bottom: 1.25rem; line-height: 1.5; }
        label { display: block; font-size: 0.9rem; margin-bottom: 0.25rem; }
        input[type=email], input[type=password] {
            width: 100%%; padding: 0.6rem; margin-bottom: 1rem;
            border: 1px solid #d0d7de; border-radius: 6px;
        }
        button { padding: 0.65rem 1.2rem; border: 0; border-radius: 6px; cursor: pointer; }
        .primary { background: #10a37f; color: #fff; }
        .secondary { background: #eaeef2; color: #1f2328; margin-left: 0.5rem; }
        .error { background: #ffebe9; color: #cf222e; padding: 0.6rem; border-radius: 6px; margin-bottom: 1rem; }
        code { background: #eaeef2; padding: 0 0.25rem; border-radius: 4px; }`

// authorizeForm carries what the authorize page must round-trip.
type authorizeForm struct {
	RedirectURI string
	State       string
	ClientID    string
	UserID      string

	CodeChallenge       string
	CodeChallengeMethod string

	Email       string
	Error       string
}

func (f authorizeForm) hiddenFields() string {
	fields := fmt.Sprintf(`<input type="hidden" name="redirect_uri" value="%s">
            <input type="hidden" name="state" value="%s">
            <input type="hidden" name="client_id" value="%s">`,
		html.EscapeString(f.RedirectURI), html.EscapeString(f.State), html.EscapeString(f.ClientID))
	if f.CodeChallenge != "" {
		fields += fmt.Sprintf(`
            <input type="hidden" name="code_challenge" value="%s">
            <input type="hidden" name="code_challenge_method" value="%s">`,
			html.EscapeString(f.CodeChallenge), html.EscapeString(f.CodeChallengeMethod))
	}
	return fields
}

func (f authorizeForm) errorBlock() string {
	if f.Error == "" {
		return ""
	}
	return fmt.Sprintf(`<div class="error">%s</div>`, html.EscapeString(f.Error))
}

// renderLoginPage renders the email/password form.
func renderLoginPage(w http.ResponseWriter, status int, f authorizeForm) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Connect LibreChat MCP</title>
    <style>`+pageStyle+`
    </style>
</head>
<body>
    <div class="card">
        <h1>Connect your account</h1>
        <p>Sign in with your LibreChat credentials to authorize MCP access for <code>%s</code>.</p>
        %s
        <form method="POST">
            %s
            <input type="hidden" name="action" value="login">
            <label for="email">Email</label>
            <input type="email" id="email" name="email" value="%s" autocomplete="username" required>
            <label for="password">Password</label>
            <input type="password" id="password" name="password" autocomplete="current-password" required>
            <button type="submit" class="primary">Sign in and authorize</button>
        </form>
    </div>
</body>
</html>`, html.EscapeString(f.UserID), f.errorBlock(), f.hiddenFields(), html.EscapeString(f.Email))
}

// renderApprovePage renders the one-click consent form.
func renderApprovePage(w http.ResponseWriter, f authorizeForm) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authorize LibreChat MCP</title>
    <style>`+pageStyle+`
    </style>
</head>
<body>
    <div class="card">
        <h1>Authorize access</h1>
        <p>Allow MCP access for <code>%s</code>?</p>
        <form method="POST">
            %s
            <button type="submit" name="action" value="approve" class="primary">Approve</button>
            <button type="submit" name="action" value="deny" class="secondary">Deny</button>
        </form>
    </div>
</body>
</html>`, html.EscapeString(f.UserID), f.hiddenFields())
}

// renderErrorPage renders a terminal error page.
func renderErrorPage(w http.ResponseWriter, status int, message string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Authorization Failed</title>
    <style>`+pageStyle+`
    </style>
</head>
<body>
    <div class="card">
        <h1>Authorization failed</h1>
        <div class="error">%s</div>
        <p>You can close this window and try again.</p>
    </div>
</body>
</html>`, html.EscapeString(message))
}

func writePlainError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
