package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(CredentialRejections.WithLabelValues("expired"))
	CredentialRejections.WithLabelValues("expired").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CredentialRejections.WithLabelValues("expired")))

	issued := testutil.ToFloat64(TokensIssued)
	TokensIssued.Inc()
	assert.Equal(t, issued+1, testutil.ToFloat64(TokensIssued))
}
