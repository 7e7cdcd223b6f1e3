package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerDocIsValidJSON(t *testing.T) {
	SwaggerInfo.Host = "finance.example.com"
	doc, err := swag.ReadDoc()
	require.NoError(t, err)

	parsed := struct {
		Host  string                 `json:"host"`
		Paths map[string]interface{} `json:"paths"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	assert.Equal(t, "finance.example.com", parsed.Host)
	for _, path := range []string{"/health", "/api/v1/webhook/telegram", "/api/v1/admin/tokens", "/api/v1/transactions", "/api/v1/transactions/{id}", "/api/v1/summary"} {
		assert.Contains(t, parsed.Paths, path)
	}
}
