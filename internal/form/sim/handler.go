package sim

import (
	"net/http"

	"github.com/GoSim-25-26J-441/form-optimizer/pkg/logger"
)

// Handler serves the page over HTTP. A POST applies submitted fields and,
// when the Calculate button submitted the form, recalculates; it then
// redirects back to the form.
func (p *Page) Handler() http.Handler {
	log := logger.Component("simform")
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet:
			doc, err := p.HTML(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(doc))
		case http.MethodPost:
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			p.submit(r)
			log.Debug("form submitted", "action", r.PostForm.Get("action"), "evaluations", p.Evaluations())
			http.Redirect(w, r, "/", http.StatusSeeOther)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (p *Page) submit(r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, in := range p.layout.Inputs {
		if v, ok := r.PostForm[in.ID]; ok && len(v) > 0 {
			p.text[in.ID] = v[0]
		}
	}
	for _, c := range p.layout.Choices {
		if v := r.PostForm.Get(c.ID); v != "" && c.hasOption(v) {
			p.selected[c.ID] = v
		}
	}
	if r.PostForm.Get("action") == calculateButton && p.recalc {
		p.calculateLocked()
	}
}
