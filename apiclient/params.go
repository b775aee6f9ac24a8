/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import "net/url"

// ParamsSource provides query parameters of a request.
// It's either StaticParams or ReactiveParams and is resolved once, when the request is built.
type ParamsSource interface {
	resolveParams() url.Values
}

// StaticParams is a fixed set of query parameters.
type StaticParams url.Values

func (p StaticParams) resolveParams() url.Values {
	return url.Values(p)
}

// ReactiveParams computes query parameters at call time, so a call parked in the queue
// is sent with the values current at dispatch.
type ReactiveParams func() url.Values

func (p ReactiveParams) resolveParams() url.Values {
	if p == nil {
		return nil
	}
	return p()
}

func resolveParams(src ParamsSource) url.Values {
	if src == nil {
		return nil
	}
	return src.resolveParams()
}
