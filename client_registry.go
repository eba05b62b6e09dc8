package caddymiabrelay

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp/caddyauth"
	"golang.org/x/crypto/bcrypt"
)

type DenyReason string

const (
	// Indicates that the user is not authorized to answer challenges for the
	// requested domain.
	DenyDomainNotAllowed DenyReason = "requested domain denied by policy"

	// Indicates that the requested domain could not be checked against the
	// policy.
	DenyInvalidDomain DenyReason = "requested domain not valid"
)

// DNS names for answering DNS-01 challenges usually have this prefix. It is
// removed before policy checks.
const challengeDomainPrefix = "_acme-challenge."

// Realm sent in the WWW-Authenticate challenge.
const authRealm = "miabrelay"

// A user allowed to call the relay.
type RawAccount struct {
	ClientPolicy

	// The user's shared secret in plain text. Placeholders such as
	// {env.AUTH_PASS} are expanded during provisioning, and the result is
	// hashed before it is handed to the basic-auth provider.
	Password string `json:"password,omitempty"`

	// The user's secret, already hashed using `caddy hash-password`. Used
	// instead of Password.
	PasswordHash string `json:"password_hash,omitempty"`
}

// Returns the bcrypt hash of the account's secret, after expanding
// placeholders.
func (a *RawAccount) hashedSecret(repl *caddy.Replacer) (string, error) {
	if a.Password != "" && a.PasswordHash != "" {
		return "", fmt.Errorf("cannot set both password and password_hash")
	}

	if a.PasswordHash != "" {
		hash := repl.ReplaceAll(a.PasswordHash, "")
		if !strings.HasPrefix(hash, "$") {
			return "", fmt.Errorf("password_hash is not a bcrypt hash")
		}
		return hash, nil
	}

	password := repl.ReplaceAll(a.Password, "")
	if password == "" {
		return "", fmt.Errorf("no password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("unable to hash password: %w", err)
	}
	return string(hash), nil
}

// A registry of known users, their credentials, and their policy
// configuration.
type ClientRegistry struct {
	// Maps each client's user ID to its policy.
	clients map[string]*ClientPolicy

	// Checks HTTP basic-auth credentials against the registered users.
	basicAuth *caddyauth.HTTPBasicAuth
}

func (c *ClientRegistry) Provision(
	ctx caddy.Context,
	accountsRaw []RawAccount,
) error {
	if len(accountsRaw) == 0 {
		return fmt.Errorf("must configure at least one account")
	}

	repl := caddy.NewReplacer()
	c.clients = make(map[string]*ClientPolicy, len(accountsRaw))
	accountList := make([]caddyauth.Account, 0, len(accountsRaw))
	for i := range accountsRaw {
		rawAccount := &accountsRaw[i]
		userID := repl.ReplaceAll(rawAccount.UserID, "")
		if userID == "" {
			return fmt.Errorf("account %d: missing user ID", i)
		}
		if _, exists := c.clients[userID]; exists {
			return fmt.Errorf("account %d: user ID is not unique: %q", i, userID)
		}

		hash, err := rawAccount.hashedSecret(repl)
		if err != nil {
			return fmt.Errorf("account %d: user %q: %w", i, userID, err)
		}
		accountList = append(accountList, caddyauth.Account{
			Username: userID,
			Password: hash,
		})

		rawAccount.UserID = userID
		err = rawAccount.ClientPolicy.Provision(ctx)
		if err != nil {
			return fmt.Errorf(
				"unable to provision client policy for user ID %q: %w",
				userID,
				err,
			)
		}

		c.clients[userID] = &rawAccount.ClientPolicy
	}

	c.basicAuth = &caddyauth.HTTPBasicAuth{
		AccountList: accountList,
		Realm:       authRealm,
		HashCache:   &caddyauth.Cache{},
	}
	err := c.basicAuth.Provision(ctx)
	if err != nil {
		return fmt.Errorf("unable to provision basic authentication: %w", err)
	}

	return nil
}

// Checks the request's basic-auth credentials. Returns the user ID and true if
// they match a registered account. Otherwise, a WWW-Authenticate challenge is
// set on w and false is returned.
func (c *ClientRegistry) Authenticate(
	w http.ResponseWriter,
	req *http.Request,
) (string, bool, error) {
	user, ok, err := c.basicAuth.Authenticate(w, req)
	if err != nil {
		return "", false, fmt.Errorf("unable to check credentials: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return user.ID, true, nil
}

// Determines whether the given (authenticated) user is allowed to answer a
// DNS-01 challenge at the given challenge domain. Returns an empty reason on
// success.
func (c *ClientRegistry) AuthorizeChallengeDomain(
	userID string,
	challengeDomain string,
) (DenyReason, error) {
	clientPolicy, exists := c.clients[userID]
	if !exists {
		return "", fmt.Errorf("unknown user ID %q", userID)
	}
	if clientPolicy.DomainPolicy == nil {
		return "", nil
	}

	// Strip off the prefix and any trailing dot. If the result starts with a
	// dot, then the requested domain is invalid.
	domain := strings.TrimPrefix(challengeDomain, challengeDomainPrefix)
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" || strings.HasPrefix(domain, ".") {
		return DenyInvalidDomain, nil
	}
	return clientPolicy.check(domain)
}
