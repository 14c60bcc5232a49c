package school

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRegisterMountsFullCRUDSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewRepository(nil)).Register(r.Group("/v1"))

	mounted := make(map[string]bool)
	for _, ri := range r.Routes() {
		mounted[ri.Method+" "+ri.Path] = true
	}

	for _, entity := range []string{"teachers", "students", "classes", "years", "guardians", "accounts"} {
		for _, route := range []string{
			"GET /v1/" + entity,
			"GET /v1/" + entity + "/:id",
			"POST /v1/" + entity,
			"PUT /v1/" + entity + "/:id",
			"DELETE /v1/" + entity + "/:id",
		} {
			assert.True(t, mounted[route], route)
		}
	}
	assert.True(t, mounted["POST /v1/students/:id/guardians"])
}
