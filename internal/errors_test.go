package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/miyuou/smartticket/internal"
)

var _ = Describe("AppError", func() {
	It("matches sentinels by type and code through wrapping", func() {
		err := fmt.Errorf("update ticket: %w", internal.ErrNotAssigned.WithMessage("nope"))
		Expect(errors.Is(err, internal.ErrNotAssigned)).To(BeTrue())
		Expect(errors.Is(err, internal.ErrRoleNotPermitted)).To(BeFalse())

		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("never mutates the sentinel", func() {
		_ = internal.ErrTicketNotFound.WithDetails("x").WithCause(errors.New("sql"))
		Expect(internal.ErrTicketNotFound.Details).To(BeNil())
		Expect(internal.ErrTicketNotFound.Cause).To(BeNil())
	})

	It("serializes without the cause", func() {
		err := internal.NewInternalError("Internal server error", errors.New("dial tcp 10.0.0.5:5432"))
		status, body := err.ToHTTPResponse()
		Expect(status).To(Equal(http.StatusInternalServerError))

		raw, marshalErr := json.Marshal(body)
		Expect(marshalErr).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{"error":{"type":"INTERNAL_ERROR","code":"INTERNAL_ERROR","message":"Internal server error"}}`))
	})

	DescribeTable("maps transport statuses",
		func(status int, errType internal.ErrorType, code internal.ErrorCode) {
			e := internal.NewHTTPError(status, "m")
			Expect(e.Type).To(Equal(errType))
			Expect(e.Code).To(Equal(code))
			Expect(e.StatusCode).To(Equal(status))
		},
		Entry("400", http.StatusBadRequest, internal.ErrorTypeValidation, internal.ErrCodeInvalidRequestBody),
		Entry("404", http.StatusNotFound, internal.ErrorTypeNotFound, internal.ErrCodeRouteNotFound),
		Entry("405", http.StatusMethodNotAllowed, internal.ErrorTypeValidation, internal.ErrCodeMethodNotAllowed),
		Entry("429", http.StatusTooManyRequests, internal.ErrorTypeRateLimited, internal.ErrCodeTooManyRequests),
		Entry("500", http.StatusInternalServerError, internal.ErrorTypeInternal, internal.ErrCodeInternal),
	)
})
