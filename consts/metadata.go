package consts

// GinContextKey gin context key
const GinContextKey = "gin-context"

// TraceKey global trace id
const TraceKey string = "x-md-trace"

// OwnerKey job owner token
const OwnerKey string = "x-md-owner"

// AdminKey admin flag
const AdminKey string = "x-md-admin"

// AdminTokenHeader admin token request header
const AdminTokenHeader string = "X-Admin-Token"

// UserIDHeader authenticated user id set by an upstream gateway
const UserIDHeader string = "X-User-ID"
