package output

// Verdict is the settlement oracle's answer for a fingerprint.
type Verdict string

const (
	// VerdictSettled means the network confirmed payment for the fingerprint
	VerdictSettled Verdict = "SETTLED"
	// VerdictNotSettled means the network knows no settled transaction for it
	VerdictNotSettled Verdict = "NOT_SETTLED"
	// VerdictDeclined means the network explicitly reports the transaction
	// as failed or declined
	VerdictDeclined Verdict = "DECLINED"
	// VerdictUnknown means the oracle could not answer (timeout, transport
	// failure, malformed response). Callers treat it like NOT_SETTLED for
	// status reporting but it is counted separately for alerting.
	VerdictUnknown Verdict = "UNKNOWN"
)

// SettlementOracle is an output port for the external payment network's
// transaction lookup. Queries are idempotent and side-effect free; an
// implementation must bound each call with a timeout and degrade to
// VerdictUnknown instead of returning an error.
type SettlementOracle interface {
	// CheckSettlement returns the network's verdict for a fingerprint
	CheckSettlement(fingerprint string) Verdict

	// Enabled reports whether the oracle is configured to perform real
	// lookups. When false, pending sales stay pending until confirmed
	// manually or expired.
	Enabled() bool
}
