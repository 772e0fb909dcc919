package flipt

// AuthenticationStrategy produces the Authorization header value attached to
// every outgoing call. An empty value means no header.
type AuthenticationStrategy interface {
	AuthorizationHeader() string
}

// NoneAuthentication sends no credentials.
type NoneAuthentication struct{}

func (NoneAuthentication) AuthorizationHeader() string { return "" }

// ClientTokenAuthentication authenticates with a static client token.
type ClientTokenAuthentication struct {
	Token string
}

// NewClientTokenAuthentication returns a strategy sending "Bearer <token>".
func NewClientTokenAuthentication(token string) ClientTokenAuthentication {
	return ClientTokenAuthentication{Token: token}
}

func (a ClientTokenAuthentication) AuthorizationHeader() string {
	if a.Token == "" {
		return ""
	}
	return "Bearer " + a.Token
}

// JWTAuthentication authenticates with a JSON Web Token.
type JWTAuthentication struct {
	Token string
}

// NewJWTAuthentication returns a strategy sending "JWT <token>".
func NewJWTAuthentication(token string) JWTAuthentication {
	return JWTAuthentication{Token: token}
}

func (a JWTAuthentication) AuthorizationHeader() string {
	if a.Token == "" {
		return ""
	}
	return "JWT " + a.Token
}
