package types

// SubscriptionStatus mirrors the platform's subscription lifecycle
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// ProrationBehavior controls how price changes are charged mid-period
type ProrationBehavior string

const (
	ProrationBehaviorNone             ProrationBehavior = "none"
	ProrationBehaviorCreateProrations ProrationBehavior = "create_prorations"
	ProrationBehaviorAlwaysInvoice    ProrationBehavior = "always_invoice"
)

// CollectionMethod controls whether the platform charges automatically
type CollectionMethod string

const (
	CollectionMethodChargeAutomatically CollectionMethod = "charge_automatically"
	CollectionMethodSendInvoice         CollectionMethod = "send_invoice"
)
