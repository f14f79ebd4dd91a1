package generichttp

import (
	"encoding/json"
	"go/types"
	"log"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
)

// BoolT holds a bool
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT holds an int
type IntT struct {
	Int int `json:"int"`
}

// FloatT holds a float
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT holds a string
type StrT struct {
	Str string `json:"str"`
}

// HumanPayload is a struct containing the basic types the handlers respond
// with; T selects which field is sent
type HumanPayload struct {
	T      types.BasicKind
	Bool   bool
	Int    int
	Float  float64
	String string
}

// EncodeAndRespond writes the payload to w as {'bool': v}, {'int': v},
// {'f64': v} or {'str': v}
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Bool:
		v = BoolT{hp.Bool}
	case types.Int:
		v = IntT{hp.Int}
	case types.Float64:
		v = FloatT{hp.Float}
	case types.String:
		v = StrT{hp.String}
	default:
		http.Error(w, "generichttp: unsupported payload type", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.Printf("generichttp: encoding payload for %s: %v", r.URL.Path, err)
	}
}

// MethodPath is an HTTP method and a chi route pattern
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable maps method/path pairs to handlers
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints returns the paths in the table, sorted, one entry per method
func (rt RouteTable) Endpoints() []string {
	out := make([]string, 0, len(rt))
	for k := range rt {
		out = append(out, k.Method+" "+k.Path)
	}
	sort.Strings(out)
	return out
}

// Bind places every route of the table on r, and a GET /endpoints listing them
func (rt RouteTable) Bind(r chi.Router) {
	for k, v := range rt {
		r.MethodFunc(k.Method, k.Path, v)
	}
	r.Get("/endpoints", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rt.Endpoints())
	})
}

// HTTPer is anything that exposes a route table
type HTTPer interface {
	RT() RouteTable
}
