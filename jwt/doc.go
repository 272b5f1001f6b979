// Package jwt manages access-token and refresh-token issuance and verification
// using a configured signing secret and strict validation semantics suitable
// for low-latency authentication paths.
package jwt
