package ticket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/core/testdb"
	"github.com/miyuou/smartticket/internal/ticket"
	"github.com/miyuou/smartticket/internal/ticket/postgres"
	"github.com/miyuou/smartticket/pkg/logger"
)

var _ = Describe("Handler", func() {
	var (
		db     *gorm.DB
		fx     *testdb.Fixture
		router *chi.Mux
		as     map[string]identity.Principal
	)

	// the test router trusts an X-Test-User header instead of a token
	withPrincipal := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := as[r.Header.Get("X-Test-User")]; ok {
				r = r.WithContext(internal.ContextWithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}

	do := func(user, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Type string `json:"type"`
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		fx, err = testdb.Seed(db)
		Expect(err).NotTo(HaveOccurred())

		as = map[string]identity.Principal{
			"admin":     {UserID: fx.Admin.ID, Role: identity.RoleAdmin},
			"alice":     {UserID: fx.TechA.ID, Role: identity.RoleTechnician},
			"bruno":     {UserID: fx.TechB.ID, Role: identity.RoleTechnician},
			"requester": {UserID: fx.Requester.ID, Role: identity.RoleRequester},
		}

		svc := ticket.NewService(postgres.NewTicketRepository(db), nil, ticket.Config{}, logger.Discard())
		h := ticket.NewHandler(svc, logger.Discard())

		router = chi.NewRouter()
		router.Use(withPrincipal)
		router.Get("/tickets", h.ListTickets)
		router.Post("/tickets", h.CreateTicket)
		router.Get("/tickets/{id}", h.GetTicket)
		router.Put("/tickets/{id}", h.UpdateTicket)
		router.Delete("/tickets/{id}", h.DeleteTicket)
	})

	AfterEach(func() {
		Expect(testdb.Close(db)).To(Succeed())
	})

	createBody := func(techs string) string {
		return `{"titre":"VPN","demandeur":"Ventes","description":"VPN coupé",` +
			`"categorie_id":` + strconv.FormatInt(fx.Categories["Réseau"], 10) +
			`,"statut_id":` + strconv.FormatInt(fx.Statuts["Nouveau"], 10) +
			`,"type_id":` + strconv.FormatInt(fx.Types["Incident"], 10) +
			`,"technicien_ids":` + techs + `}`
	}

	It("creates a ticket and serializes nested references", func() {
		rec := do("admin", http.MethodPost, "/tickets", createBody("["+strconv.FormatInt(fx.TechA.ID, 10)+"]"))
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var body map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("titre", "VPN"))
		Expect(body).To(HaveKey("date_d_ouverture"))
		Expect(body).To(HaveKeyWithValue("date_resolution", BeNil()))
		Expect(body["categorie"]).To(HaveKeyWithValue("nom", "Réseau"))
		Expect(body["techniciens"]).To(HaveLen(1))
		tech := body["techniciens"].([]interface{})[0].(map[string]interface{})
		Expect(tech).To(HaveKeyWithValue("role", "technicien"))
		Expect(tech).NotTo(HaveKey("mot_de_passe"))
	})

	It("returns 401 without a principal", func() {
		rec := do("", http.MethodGet, "/tickets", "")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("returns 403 for a requester creating a ticket", func() {
		rec := do("requester", http.MethodPost, "/tickets", createBody("[]"))
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeRoleNotPermitted)))
	})

	It("returns 400 for a malformed body", func() {
		rec := do("admin", http.MethodPost, "/tickets", `{"titre":`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeInvalidRequestBody)))
	})

	It("returns 400 with INVALID_REFERENCE for an unknown category", func() {
		body := strings.Replace(createBody("[]"), `"categorie_id":`+strconv.FormatInt(fx.Categories["Réseau"], 10), `"categorie_id":999`, 1)
		rec := do("admin", http.MethodPost, "/tickets", body)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring(`"type":"INVALID_REFERENCE"`))
	})

	Context("with an existing ticket assigned to alice", func() {
		var id string

		BeforeEach(func() {
			rec := do("admin", http.MethodPost, "/tickets", createBody("["+strconv.FormatInt(fx.TechA.ID, 10)+"]"))
			Expect(rec.Code).To(Equal(http.StatusCreated))
			var created ticket.Ticket
			Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
			id = strconv.FormatInt(created.ID, 10)
		})

		It("lists it for alice and not for bruno", func() {
			rec := do("alice", http.MethodGet, "/tickets", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			var list []ticket.Ticket
			Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
			Expect(list).To(HaveLen(1))

			rec = do("bruno", http.MethodGet, "/tickets", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(rec.Body.String())).To(Equal("[]"))
		})

		It("answers bruno's status update with NOT_ASSIGNED", func() {
			rec := do("bruno", http.MethodPut, "/tickets/"+id, `{"statut_id":`+strconv.FormatInt(fx.Statuts["En cours"], 10)+`}`)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeNotAssigned)))
		})

		It("clears the description on explicit null", func() {
			rec := do("admin", http.MethodPut, "/tickets/"+id, `{"description":null}`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("description", BeNil()))
			Expect(body).To(HaveKeyWithValue("titre", "VPN"))
		})

		It("deletes with 204 and then 404s", func() {
			Expect(do("admin", http.MethodDelete, "/tickets/"+id, "").Code).To(Equal(http.StatusNoContent))
			rec := do("admin", http.MethodGet, "/tickets/"+id, "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(string(internal.ErrCodeTicketNotFound)))
		})
	})

	It("rejects a non numeric id", func() {
		rec := do("admin", http.MethodGet, "/tickets/abc", "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("does not leak internal errors", func() {
		h := ticket.NewHandler(failingService{}, logger.Discard())
		req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), as["admin"]))
		rec := httptest.NewRecorder()
		h.ListTickets(rec, req)
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).NotTo(ContainSubstring("connection refused"))
	})
})

type failingService struct {
	ticket.ServiceAPI
}

func (failingService) ListTickets(ctx context.Context, p identity.Principal) ([]*ticket.Ticket, error) {
	return nil, &dialError{}
}

type dialError struct{}

func (*dialError) Error() string { return "dial tcp 10.0.0.1:5432: connection refused" }
