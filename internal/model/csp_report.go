package model

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Column limits for csp_reports
const (
	MaxViolatedDirectiveLength = 500
	MaxOriginalPolicyLength    = 500
)

// CSPViolation is the body of a browser violation report as defined by
// http://www.w3.org/TR/CSP/#sample-violation-report
type CSPViolation struct {
	DocumentURI       string `json:"document-uri"`
	Referrer          string `json:"referrer"`
	BlockedURI        string `json:"blocked-uri"`
	ViolatedDirective string `json:"violated-directive"`
	OriginalPolicy    string `json:"original-policy"`
}

// CSPReportPayload is the JSON envelope browsers POST to a report-uri.
type CSPReportPayload struct {
	Report *CSPViolation `json:"csp-report"`
}

// CSPReport is one stored violation report. Reports are never updated.
type CSPReport struct {
	ID                uuid.UUID `json:"id" db:"id"`
	DocumentURI       string    `json:"document_uri" db:"document_uri" validate:"required,url,nonul"`
	Referrer          string    `json:"referrer" db:"referrer" validate:"required,url,nonul"`
	BlockedURI        string    `json:"blocked_uri" db:"blocked_uri" validate:"required,url,nonul"`
	ViolatedDirective string    `json:"violated_directive" db:"violated_directive" validate:"required,max=500,nonul"`
	OriginalPolicy    string    `json:"original_policy" db:"original_policy" validate:"required,max=500,nonul"`
	ReceivedAt        time.Time `json:"received_at" db:"received_at"`
	SenderIP          string    `json:"sender_ip" db:"sender_ip" validate:"required,ip"`
}

// NewCSPReport builds an unsaved report from a violation and stamps ReceivedAt
// with the current UTC time. ReceivedAt is truncated to microseconds and
// senderIP is put in canonical form so both match what the database returns.
func NewCSPReport(v CSPViolation, senderIP string) *CSPReport {
	return &CSPReport{
		ID:                uuid.New(),
		DocumentURI:       v.DocumentURI,
		Referrer:          v.Referrer,
		BlockedURI:        v.BlockedURI,
		ViolatedDirective: v.ViolatedDirective,
		OriginalPolicy:    v.OriginalPolicy,
		ReceivedAt:        time.Now().UTC().Truncate(time.Microsecond),
		SenderIP:          CanonicalIP(senderIP),
	}
}

// CanonicalIP returns ip in the form Postgres prints an inet host address:
// lower case, zeros compressed. Unparseable input is returned unchanged so
// validation can reject it.
func CanonicalIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.Zone() != "" {
		return ip
	}
	return addr.String()
}

func (r *CSPReport) String() string {
	return fmt.Sprintf("CSP Report: %s from %s", r.BlockedURI, r.DocumentURI)
}

// DirectiveName returns the directive name without its source list, e.g.
// "script-src" for "script-src 'self'".
func (r *CSPReport) DirectiveName() string {
	fields := strings.Fields(r.ViolatedDirective)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// CSPReportFilter narrows a report listing. Zero values are ignored.
type CSPReportFilter struct {
	Pagination
	Directive string    `json:"directive" form:"directive"`
	SenderIP  string    `json:"sender_ip" form:"sender_ip"`
	Since     time.Time `json:"since" form:"since"`
	Until     time.Time `json:"until" form:"until"`
}
