package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTransaction(t *testing.T) {
	before := testutil.ToFloat64(BookingFailures.WithLabelValues("reserve", "insufficient_inventory"))

	ObserveTransaction("reserve", time.Now(), "insufficient_inventory")
	ObserveTransaction("reserve", time.Now(), "")

	after := testutil.ToFloat64(BookingFailures.WithLabelValues("reserve", "insufficient_inventory"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, 1, testutil.CollectAndCount(TransactionDuration))
}
