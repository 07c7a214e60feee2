package crypto

import "testing"

func TestSanitizeAcceptsAllowedStatements(t *testing.T) {
	cases := []string{
		"SELECT * FROM jobs WHERE enabled = true",
		"  insert into jobs (name) values ('x')  ",
		"WITH recent AS (SELECT 1) SELECT * FROM recent",
	}
	for _, c := range cases {
		got, err := Sanitize(c)
		if err != nil {
			t.Fatalf("Sanitize(%q): unexpected error %v", c, err)
		}
		if got == "" {
			t.Fatalf("Sanitize(%q): expected non-empty result", c)
		}
	}
}

func TestSanitizeStripsComments(t *testing.T) {
	got, err := Sanitize("SELECT 1 -- trailing comment\n")
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("expected trailing line comment stripped, got %q", got)
	}

	got, err = Sanitize("SELECT /* block */ 1")
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if got != "SELECT 1" {
		t.Fatalf("expected block comment stripped, got %q", got)
	}
}

func TestSanitizeRejectsDisallowedLeadingKeyword(t *testing.T) {
	if _, err := Sanitize("DROP TABLE jobs"); err != ErrQueryRejected {
		t.Fatalf("expected rejection of DROP, got %v", err)
	}
}

func TestSanitizeRejectsDenyPatterns(t *testing.T) {
	cases := []string{
		"SELECT 1; DROP TABLE jobs",
		"SELECT * FROM a UNION SELECT password FROM users",
		"SELECT * FROM information_schema.tables",
		"SELECT * FROM mysql.user",
		"SELECT 1 --",
		"SELECT 1; EXEC xp_cmdshell('dir')",
	}
	for _, c := range cases {
		if _, err := Sanitize(c); err != ErrQueryRejected {
			t.Fatalf("Sanitize(%q): expected ErrQueryRejected, got %v", c, err)
		}
	}
}

func TestSanitizeRejectsOverLengthQuery(t *testing.T) {
	long := "SELECT '"
	for len(long) < maxSanitizedQueryLength+10 {
		long += "x"
	}
	long += "'"

	if _, err := Sanitize(long); err != ErrQueryRejected {
		t.Fatalf("expected rejection of over-length query, got %v", err)
	}
}
