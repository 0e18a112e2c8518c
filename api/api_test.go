package api_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/miyuou/smartticket/api"
)

var _ = Describe("OpenAPI document", func() {
	It("loads and validates", func() {
		doc, err := api.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Info.Title).To(Equal("SmartTicket API"))
	})

	It("documents every public route", func() {
		doc, err := api.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())

		for _, path := range []string{
			"/auth/login", "/tickets", "/tickets/{id}", "/stats",
			"/import_export/import", "/import_export/export",
			"/categories", "/statuts", "/types",
			"/users", "/users/me", "/users/{id}", "/health", "/ping",
		} {
			Expect(doc.Paths.Value(path)).NotTo(BeNil(), path)
		}
		Expect(doc.Paths.Value("/tickets/{id}").Put).NotTo(BeNil())
		Expect(doc.Paths.Value("/tickets/{id}").Delete).NotTo(BeNil())
	})
})
