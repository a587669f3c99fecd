package auth

// Effect is the outcome of a policy decision.
type Effect string

const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

// Decision is a binary allow/deny for one request.
type Decision struct {
	Effect      Effect
	PrincipalID string
	Resource    string
	Reason      string
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Effect == Allow
}

// Decide allows the request iff a token was verified (id != nil) and its
// subject equals the non-empty claimed user id. It has no side effects;
// enforcing the decision is up to the caller.
func Decide(claimedUserID string, id *Identity, resource string) Decision {
	d := Decision{
		Effect:      Deny,
		PrincipalID: claimedUserID,
		Resource:    resource,
	}

	switch {
	case claimedUserID == "":
		d.Reason = "missing claimed user id"
	case id == nil:
		d.Reason = "no verified token"
	case id.Subject != claimedUserID:
		d.Reason = "subject does not match claimed user id"
	default:
		d.Effect = Allow
		d.Reason = "subject matches claimed user id"
	}

	if d.PrincipalID == "" {
		d.PrincipalID = "anonymous"
	}
	return d
}
