package errors

// Error code constants returned in API error responses.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these to display messages.

const (
	// Authentication (AUTH_)
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"

	// Authorization (AUTHZ_)
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND"

	// Validation (VALIDATION_)
	ValidationInvalidInput    = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID       = "VALIDATION_INVALID_ID"
	ValidationInvalidQuantity = "VALIDATION_INVALID_QUANTITY"
	ValidationRequired        = "VALIDATION_REQUIRED"

	// Resources (RESOURCE_)
	ResourceNotFound = "RESOURCE_NOT_FOUND"

	// Products (PRODUCT_)
	ProductNotFound       = "PRODUCT_NOT_FOUND"
	ProductInvalidVariant = "PRODUCT_INVALID_VARIANT"
	ProductOutOfStock     = "PRODUCT_OUT_OF_STOCK"

	// Cart (CART_)
	CartItemNotFound = "CART_ITEM_NOT_FOUND"

	// Orders (ORDER_)
	OrderNotFound      = "ORDER_NOT_FOUND"
	OrderEmpty         = "ORDER_EMPTY"
	OrderTotalMismatch = "ORDER_TOTAL_MISMATCH"
	OrderInvalidStatus = "ORDER_INVALID_STATUS"

	// Payments (PAYMENT_)
	PaymentNotFound         = "PAYMENT_NOT_FOUND"
	PaymentNoIntent         = "PAYMENT_NO_INTENT"
	PaymentAlreadyProcessed = "PAYMENT_ALREADY_PROCESSED"
	PaymentUpstreamRejected = "PAYMENT_UPSTREAM_REJECTED"
	PaymentInvalidSignature = "PAYMENT_INVALID_SIGNATURE"

	// Reviews (REVIEW_)
	ReviewNotFound      = "REVIEW_NOT_FOUND"
	ReviewAlreadyExists = "REVIEW_ALREADY_EXISTS"
	ReviewInvalidRating = "REVIEW_INVALID_RATING"

	// Uploads (UPLOAD_)
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"

	// Server
	InternalServerError = "INTERNAL_SERVER_ERROR"
)
