package transfer_test

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/transfer"
)

var _ = Describe("CSV", func() {
	Describe("ParseTickets", func() {
		It("maps columns by header name", func() {
			in := "type_id,statut_id,categorie_id,demandeur,date_d_ouverture,titre,description\n" +
				"2,1,3,Ventes,2025-01-15 09:30:00,VPN,\"coupé, encore\"\n"
			rows, err := transfer.ParseTickets(strings.NewReader(in))
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))

			row := rows[0]
			Expect(row.Err).NotTo(HaveOccurred())
			Expect(row.Line).To(Equal(2))
			Expect(row.DTO.Titre).To(Equal("VPN"))
			Expect(*row.DTO.Description).To(Equal("coupé, encore"))
			Expect(row.DTO.DepartementDemandeur).To(BeNil())
			Expect(row.DTO.CategorieID).To(Equal(int64(3)))
			Expect(row.DTO.TypeID).To(Equal(int64(2)))
			Expect(*row.DTO.DateOuverture).To(BeTemporally("==", time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)))
			Expect(row.DTO.DateResolution).To(BeNil())
		})

		DescribeTable("timestamp formats",
			func(raw string, want time.Time) {
				in := "titre,demandeur,categorie_id,statut_id,type_id,date_d_ouverture\nA,B,1,1,1," + raw + "\n"
				rows, err := transfer.ParseTickets(strings.NewReader(in))
				Expect(err).NotTo(HaveOccurred())
				Expect(rows[0].Err).NotTo(HaveOccurred())
				Expect(*rows[0].DTO.DateOuverture).To(BeTemporally("==", want))
			},
			Entry("RFC3339", "2025-02-01T10:00:00Z", time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)),
			Entry("RFC3339 with offset", "2025-02-01T12:00:00+02:00", time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)),
			Entry("space separated", "2025-02-01 10:00:00", time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)),
			Entry("microseconds", "2025-02-01 10:00:00.123456", time.Date(2025, 2, 1, 10, 0, 0, 123456000, time.UTC)),
			Entry("date only", "2025-02-01", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
		)

		It("reports a bad value on its row and keeps going", func() {
			in := "titre,demandeur,categorie_id,statut_id,type_id,date_d_ouverture\n" +
				"A,B,x,1,1,2025-01-01\n" +
				"C,D,1,1,1,yesterday\n" +
				"E,F,1.0,1,1,2025-01-01\n"
			rows, err := transfer.ParseTickets(strings.NewReader(in))
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0].Err).To(MatchError(ContainSubstring("categorie_id")))
			Expect(rows[1].Err).To(MatchError(ContainSubstring("date_d_ouverture")))
			Expect(rows[2].Err).NotTo(HaveOccurred())
			Expect(rows[2].DTO.CategorieID).To(Equal(int64(1)))
		})

		It("skips blank lines and tolerates a byte order mark", func() {
			in := "\ufefftitre,demandeur,categorie_id,statut_id,type_id,date_d_ouverture\n" +
				",,,,,\n" +
				"A,B,1,1,1,2025-01-01\n"
			rows, err := transfer.ParseTickets(strings.NewReader(in))
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Line).To(Equal(3))
		})

		It("rejects a header without required columns", func() {
			_, err := transfer.ParseTickets(strings.NewReader("titre,description\nA,B\n"))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidCSV))
			Expect(appErr.Message).To(ContainSubstring("demandeur"))
		})

		It("rejects an empty file", func() {
			_, err := transfer.ParseTickets(strings.NewReader(""))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("WriteTickets", func() {
		It("writes the header and empty cells for nulls", func() {
			opened := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)
			var buf bytes.Buffer
			Expect(transfer.WriteTickets(&buf, []transfer.ExportRow{{
				ID: 7, Titre: "VPN", DateOuverture: opened, Demandeur: "Ventes",
				CategorieID: 1, StatutID: 2, TypeID: 3,
				Description:      sql.NullString{String: "a \"quoted\" text", Valid: true},
				DateModification: opened,
			}})).To(Succeed())

			records, err := csv.NewReader(&buf).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0]).To(Equal(transfer.ExportColumns))
			Expect(records[1]).To(Equal([]string{
				"7", "VPN", "a \"quoted\" text", "2025-01-15T09:30:00Z", "Ventes",
				"1", "2", "3", "", "", "2025-01-15T09:30:00Z",
			}))
		})
	})
})
