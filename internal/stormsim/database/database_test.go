package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateConnectionString(t *testing.T) {
	s := createConnectionString(map[string]string{"host": "localhost"})
	assert.Equal(t, "host='localhost'", s)
}

func TestCreateConnectionStringEscapesQuotesAndBackslashes(t *testing.T) {
	s := createConnectionString(map[string]string{"password": `it's\tricky`})
	assert.Equal(t, `password='it\'s\\tricky'`, s)
}

func TestCreateConnectionStringJoinsAllValues(t *testing.T) {
	s := createConnectionString(map[string]string{
		"host":   "localhost",
		"port":   "5432",
		"dbname": "postgres",
	})
	assert.Contains(t, s, "host='localhost'")
	assert.Contains(t, s, "port='5432'")
	assert.Contains(t, s, "dbname='postgres'")
	assert.Equal(t, 2, strings.Count(s, " "))
}
