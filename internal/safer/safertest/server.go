// Package safertest serves fixture pages shaped like the SAFER Company
// Snapshot flow, for tests that drive a real page session.
package safertest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Carrier describes the fixture record served for one MC number.
type Carrier struct {
	EntityType    string
	Status        string
	Authority     string
	GeneralMark   string
	PhysicalAddr  string
	NoResultsLink bool
	NoAdditional  bool
	// AdditionalHref replaces the detail link target when set.
	AdditionalHref string
	// EmailMarkup replaces the mailto paragraph with raw HTML when set.
	EmailMarkup string

	CompanyName string
	Address     string
	Email       string
	Phone       string
}

// Acme is an eligible carrier with every contact field present.
func Acme() Carrier {
	return Carrier{
		EntityType:   "CARRIER",
		Status:       "ACTIVE",
		Authority:    "AUTHORIZED FOR Property",
		GeneralMark:  "X",
		PhysicalAddr: "100 MAIN ST<br>SPRINGFIELD, IL 62704",
		CompanyName:  "ACME TRUCKING",
		Address:      "100 MAIN ST, SPRINGFIELD, IL 62704",
		Email:        "ops@acme.example",
		Phone:        "(217) 555-0100",
	}
}

// Server is a running fixture server that counts requests per path.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	carriers map[int]Carrier
	hits     map[string]int
}

// NewServer starts a fixture server closed at test cleanup.
func NewServer(t testing.TB, carriers map[int]Carrier) *Server {
	t.Helper()
	s := &Server{carriers: carriers, hits: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/CompanySnapshot.aspx", s.count(s.snapshot))
	mux.HandleFunc("/query.asp", s.count(s.query))
	mux.HandleFunc("/safer_xfr.aspx", s.count(s.sms))
	mux.HandleFunc("/registration", s.count(s.registration))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// SnapshotURL is the search page URL to put in a locator profile.
func (s *Server) SnapshotURL() string { return s.URL + "/CompanySnapshot.aspx" }

// Hits returns how many requests hit path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) count(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		h(w, r)
	}
}

func (s *Server) lookup(raw string) (Carrier, int, bool) {
	mc, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return Carrier{}, 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carriers[mc]
	return c, mc, ok
}

func (s *Server) snapshot(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `<html><body><form action="query.asp" method="POST">
<input type="hidden" name="searchtype" value="ANY">
<input type="radio" name="query_param" value="USDOT" id="1" checked>USDOT#
<input type="radio" name="query_param" value="MC_MX" id="2">MC/MX#
<input type="radio" name="query_param" value="NAME" id="3">Name
<input type="text" name="query_string" id="4" size="20">
<input type="SUBMIT" value="Search">
</form></body></html>`)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("query_param") != "MC_MX" {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}
	c, mc, ok := s.lookup(r.PostForm.Get("query_string"))
	if !ok {
		fmt.Fprint(w, `<html><body><p>Record Not Found</p></body></html>`)
		return
	}

	// Status fields sit at fixed rows of the snapshot table.
	rows := make([]string, 25)
	for i := range rows {
		rows[i] = fmt.Sprintf("<tr><td>row %d</td></tr>", i)
	}
	rows[3] = fmt.Sprintf("<tr><td>%s</td></tr>", c.EntityType)
	rows[4] = fmt.Sprintf("<tr><td>%s</td><td>Out of Service Date: None</td></tr>", c.Status)
	rows[8] = fmt.Sprintf("<tr><td>%s</td></tr>", c.Authority)
	rows[24] = fmt.Sprintf(`<tr><td><table><tr><td>Cargo Carried:</td></tr><tr><td><table>
<tr><td>mark</td><td>kind</td></tr><tr><td>%s</td><td>General Freight</td></tr></table></td></tr></table></td></tr>`, c.GeneralMark)
	table := strings.Join(rows[1:], "\n")

	link := ""
	if !c.NoResultsLink {
		link = fmt.Sprintf(`<a href="safer_xfr.aspx?PN=%d" target="_blank">SMS Results</a>`, mc)
	}
	fmt.Fprintf(w, `<html><body>
<p><table><tr><td>header</td></tr><tr><td><table><tr><td>nav</td></tr><tr><td><center><table>
%s
</table></center></td></tr></table></td></tr></table></p>
<table><tr><td>Physical Address:</td><td id="physicaladdressvalue">%s</td></tr></table>
%s
</body></html>`, table, c.PhysicalAddr, link)
}

func (s *Server) sms(w http.ResponseWriter, r *http.Request) {
	c, mc, ok := s.lookup(r.URL.Query().Get("PN"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	link := ""
	if !c.NoAdditional {
		href := fmt.Sprintf("/registration?mc=%d", mc)
		if c.AdditionalHref != "" {
			href = c.AdditionalHref
		}
		link = fmt.Sprintf(`<a href="%s">Carrier Registration Details</a>`, html.EscapeString(href))
	}
	fmt.Fprintf(w, `<html><body><div>banner</div><div>menu</div>
<div><div>side</div><div><article><div>title</div><div><div>summary</div><div><section>%s<a href="/other">Other</a></section></div></div></article></div></div>
%s
</body></html>`, link, c.contactBlock())
}

func (s *Server) registration(w http.ResponseWriter, r *http.Request) {
	c, _, ok := s.lookup(r.URL.Query().Get("mc"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprintf(w, `<html><body>%s</body></html>`, c.contactBlock())
}

func (c Carrier) contactBlock() string {
	var b strings.Builder
	b.WriteString(`<div id="regBox"><ul>`)
	if c.CompanyName != "" {
		fmt.Fprintf(&b, `<li><label>Legal Name:</label> <span>%s</span></li>`, html.EscapeString(c.CompanyName))
	} else {
		b.WriteString(`<li><label>Legal Name:</label></li>`)
	}
	b.WriteString(`<li>DBA</li><li>USDOT</li>`)
	if c.Address != "" {
		fmt.Fprintf(&b, `<li>Address: %s</li>`, c.Address)
	} else {
		b.WriteString(`<li></li>`)
	}
	if c.Phone != "" {
		fmt.Fprintf(&b, `<li>Telephone: <span>%s</span></li>`, html.EscapeString(c.Phone))
	}
	b.WriteString(`</ul></div>`)
	switch {
	case c.EmailMarkup != "":
		b.WriteString(c.EmailMarkup)
	case c.Email != "":
		fmt.Fprintf(&b, `<p>Email: <a href="mailto:%[1]s">%[1]s</a></p>`, html.EscapeString(c.Email))
	}
	return b.String()
}
