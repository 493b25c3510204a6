package onboarding

import (
	"strconv"
	"strings"
)

// Alliance is a sub-group a member joins. Name is also the guild role name,
// Tag the nickname prefix.
type Alliance struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`
}

type Alliances []Alliance

func DefaultAlliances() Alliances {
	return Alliances{
		{Key: "anqa", Name: "ANQA", Tag: "ANQA"},
		{Key: "spbg", Name: "SPBG", Tag: "SPBG"},
		{Key: "mgxt", Name: "MGXT", Tag: "MGXT"},
		{Key: "1ark", Name: "1ARK", Tag: "1ARK"},
		{Key: "jaxa", Name: "JAXA", Tag: "JAXA"},
		{Key: "jax2", Name: "JAX2", Tag: "JAX2"},
		{Key: "ank", Name: "ANK", Tag: "ANK"},
	}
}

// Select resolves a 1-based menu number.
func (a Alliances) Select(input string) (Alliance, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(a) {
		return Alliance{}, &ValidationError{
			Field:  "alliance",
			Reason: "reply with a number from 1-" + strconv.Itoa(len(a)),
		}
	}
	return a[n-1], nil
}

func (a Alliances) ByKey(key string) (Alliance, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, alliance := range a {
		if alliance.Key == key {
			return alliance, true
		}
	}
	return Alliance{}, false
}

func (a Alliances) RoleNames() []string {
	names := make([]string, 0, len(a))
	for _, alliance := range a {
		names = append(names, alliance.Name)
	}
	return names
}
