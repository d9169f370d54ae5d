package email

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// knownIMAPServers maps mailbox domains whose IMAP host cannot be guessed
// from the domain itself
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"proton.me":      "127.0.0.1:1143", // Proton Mail Bridge
	"gmx.de":         "imap.gmx.net:993",
	"t-online.de":    "secureimap.t-online.de:993",
	"posteo.de":      "posteo.de:993",
}

// ResolveServer returns configured when set, otherwise the server derived
// from the username's domain
func ResolveServer(configured, username string) (string, error) {
	if configured != "" {
		if _, _, err := net.SplitHostPort(configured); err != nil {
			return net.JoinHostPort(configured, "993"), nil
		}
		return configured, nil
	}
	return ResolveIMAPServer(username)
}

// ResolveIMAPServer determines the IMAP server for a mailbox address
func ResolveIMAPServer(username string) (string, error) {
	domain := DomainOf(username)
	if domain == "" {
		return "", fmt.Errorf("cannot derive IMAP server from %q: invalid email format", username)
	}

	// Check known providers first
	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	// Try common IMAP server patterns
	patterns := []string{
		"imap." + domain + ":993",
		"mail." + domain + ":993",
		domain + ":993",
	}

	for _, pattern := range patterns {
		host := strings.TrimSuffix(pattern, ":993")
		if checkIMAPServer(host, 993) {
			return pattern, nil
		}
	}

	// Try to resolve via MX records
	mxServer, err := resolveViaMX(domain)
	if err == nil && mxServer != "" {
		return mxServer, nil
	}

	// Default fallback - try imap.domain:993
	return "imap." + domain + ":993", nil
}

// checkIMAPServer checks if an IMAP server is reachable
func checkIMAPServer(host string, port int) bool {
	address := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", address, 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveViaMX tries to determine IMAP server from MX records
func resolveViaMX(domain string) (string, error) {
	mxRecords, err := net.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return "", fmt.Errorf("no MX records found")
	}

	// Get the primary MX record
	mxHost := strings.TrimSuffix(mxRecords[0].Host, ".")

	// Try to derive IMAP server from MX host
	// e.g., mx.example.com -> imap.example.com
	parts := strings.SplitN(mxHost, ".", 2)
	if len(parts) == 2 {
		baseDomain := parts[1]
		imapHost := "imap." + baseDomain
		if checkIMAPServer(imapHost, 993) {
			return imapHost + ":993", nil
		}

		// Try mail.domain
		mailHost := "mail." + baseDomain
		if checkIMAPServer(mailHost, 993) {
			return mailHost + ":993", nil
		}
	}

	return "", fmt.Errorf("could not determine IMAP server")
}

// DomainOf extracts the domain from an email address
func DomainOf(address string) string {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return strings.ToLower(parts[1])
}
