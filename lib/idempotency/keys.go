package idempotency

import "net/url"

// keyspace builds store keys. Records and locks live in separate namespaces; tenant and
// token are path-escaped so neither can forge a key of another tenant.
type keyspace struct {
	prefix string
}

func (k keyspace) record(tenant, token string) string {
	return k.prefix + "/rec/" + url.PathEscape(tenant) + "/" + url.PathEscape(token)
}

func (k keyspace) lock(tenant, token string) string {
	return k.prefix + "/lock/" + url.PathEscape(tenant) + "/" + url.PathEscape(token)
}
