package domain

const (
	RoleBuyer  = "BUYER"
	RoleSeller = "SELLER"
	RoleAdmin  = "ADMIN"
)

// Order lifecycle for purchases cleared through checkout.
const (
	OrderPending   = "pending"
	OrderApproved  = "approved"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
	OrderRejected  = "rejected"
)

// SellerNotifiedStatuses are the order transitions that also notify the seller.
// The buyer is notified on every transition.
var SellerNotifiedStatuses = map[string]bool{
	OrderApproved:  true,
	OrderShipped:   true,
	OrderDelivered: true,
	OrderCompleted: true,
}

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeFile  = "file"
)

// Notification types form a closed set; unknown values are never produced.
const (
	NotifyMessage            = "message"
	NotifyPurchase           = "purchase"
	NotifyPayment            = "payment"
	NotifyOfferPurchased     = "offer_purchased"
	NotifyOrderStatus        = "order_status"
	NotifyPriceDrop          = "price_drop"
	NotifyVerificationStatus = "verification_status"
	NotifyWatchlist          = "watchlist"
	NotifySystem             = "system"
	NotifyReport             = "report"
	NotifyAccountStatus      = "account_status"
	NotifyOfferSalesStatus   = "offer_sales_status"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)
