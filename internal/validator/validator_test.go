package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type lrnPayload struct {
	LRN   string `json:"lrn" binding:"required,lrn"`
	Email string `json:"email" binding:"omitempty,email"`
}

func bindBody(body string) map[string]string {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var p lrnPayload
	return Bind(c, &p)
}

func TestBindTranslatesFieldErrors(t *testing.T) {
	Setup()

	assert.Nil(t, bindBody(`{"lrn":"123456789012"}`))

	fields := bindBody(`{"lrn":"12ab","email":"nope"}`)
	assert.Equal(t, "lrn must contain digits only", fields["lrn"])
	assert.Contains(t, fields, "email")
}

func TestBindReportsMalformedJSON(t *testing.T) {
	Setup()

	fields := bindBody(`{"lrn":`)
	assert.Contains(t, fields, "detail")
}

func TestIsLRN(t *testing.T) {
	assert.True(t, IsLRN("123456789012"))
	assert.True(t, IsLRN(" 42 "))
	assert.False(t, IsLRN(""))
	assert.False(t, IsLRN("12-34"))
}
