package fetch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultSubjects is the built-in query list: one fetch session per architect.
var DefaultSubjects = []string{
	"Frank Lloyd Wright", "Le Corbusier", "Ludwig Mies van der Rohe",
	"Walter Gropius", "Zaha Hadid", "Renzo Piano", "I.M. Pei",
	"Frank Gehry", "Norman Foster", "Rem Koolhaas", "Oscar Niemeyer",
	"Tadao Ando", "Herzog & de Meuron", "Santiago Calatrava",
	"Bjarke Ingels", "Shigeru Ban", "Daniel Libeskind", "Arata Isozaki",
	"Toyo Ito", "David Chipperfield", "Philip Johnson", "Louis Kahn",
	"Eero Saarinen", "Richard Rogers", "Charles Correa", "Moshe Safdie",
	"Cesar Pelli", "Mario Botta", "Kazuyo Sejima", "Kengo Kuma",
	"Alejandro Aravena", "Steven Holl", "Fumihiko Maki", "Enric Miralles",
	"Álvaro Siza Vieira", "Odile Decq", "Bernard Tschumi", "Jeanne Gang",
	"Glenn Murcutt", "Richard Meier", "Jean Nouvel", "Ken Yeang",
	"Michael Graves", "Thom Mayne", "David Adjaye", "Sou Fujimoto",
	"Peter Zumthor", "Rafael Viñoly", "Luis Barragán", "Paul Rudolph",
	"Marcel Breuer", "Kenzo Tange",
}

// LoadSubjects reads one subject per line, skipping blanks and # comments.
func LoadSubjects(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subjects file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var subjects []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		subjects = append(subjects, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, fmt.Errorf("subjects file %s is empty", path)
	}
	return subjects, nil
}
