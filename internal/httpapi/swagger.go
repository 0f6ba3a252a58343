package httpapi

import (
	_ "embed"
	"net/http"

	"github.com/swaggo/swag"
)

// doc.json is a hand-maintained OpenAPI document describing the routes
// mounted in routes(); swag init would normally regenerate this from the
// @Summary annotations in server.go, but running the swag CLI is outside this
// package's build step. SwaggerInfo/Register below follow the shape
// swag init itself emits, so a later `swag init` run drops in cleanly.
//
//go:embed doc.json
var swaggerDoc string

// swaggerSpecReader adapts the embedded document to swag.Spec's ReadDoc,
// mirroring the struct swag init generates in docs.go.
type swaggerSpecReader struct{}

func (swaggerSpecReader) ReadDoc() string {
	return swaggerDoc
}

// SwaggerInfo describes the served document to swag's registry so other
// packages (or a generated docs.go, if this is later regenerated) can
// look it up by instance name.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Title:            "memvault API",
	Description:      "Embedded memory store: rules, project docs, and refs with semantic search.",
	InfoInstanceName: "swagger",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), swaggerSpecReader{})
}

func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(swaggerDoc))
}
