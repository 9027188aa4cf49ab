package secrets

// DefaultRules returns the built-in detection rules. They target credentials
// people commonly paste into chat prompts: provider API keys, cloud keys,
// tokens, private key blocks and connection strings.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "anthropic-api-key",
			Description: "Anthropic API key",
			Pattern:     `sk-ant-[A-Za-z0-9_\-]{32,}`,
			Severity:    "high",
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI API key",
			Pattern:     `sk-(?:proj-|svcacct-|admin-)?[A-Za-z0-9_\-]{32,}`,
			Severity:    "high",
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS access key ID",
			Pattern:     `\b(?:A3T[A-Z0-9]|AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`,
			Severity:    "high",
		},
		{
			ID:          "aws-secret-access-key",
			Description: "AWS secret access key assignment",
			Pattern:     `(?i)(?:aws_secret_access_key|secret_access_key)\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords:    []string{"secret_access_key"},
			Severity:    "high",
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `\b(?:gh[pousr]_[A-Za-z0-9]{36}|github_pat_[A-Za-z0-9_]{22,})\b`,
			Severity:    "high",
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `xox[baprs]-[A-Za-z0-9\-]{10,}`,
			Severity:    "high",
		},
		{
			ID:          "stripe-key",
			Description: "Stripe secret or restricted key",
			Pattern:     `\b(?:sk|rk)_(?:live|test)_[A-Za-z0-9]{24,}\b`,
			Severity:    "high",
		},
		{
			ID:          "google-api-key",
			Description: "Google API key",
			Pattern:     `AIza[A-Za-z0-9_\-]{35}`,
			Severity:    "medium",
		},
		{
			ID:          "private-key",
			Description: "PEM private key block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----[\s\S]*?-----END (?:RSA |DSA |EC |OPENSSH |PGP |ENCRYPTED )?PRIVATE KEY(?: BLOCK)?-----`,
			Severity:    "high",
		},
		{
			ID:          "connection-string",
			Description: "Connection string with embedded password",
			Pattern:     `(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^\s:/@]+:[^\s@]+@[^\s'"]+`,
			Severity:    "high",
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `\beyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}`,
			Severity:    "medium",
		},
		{
			ID:          "bearer-token",
			Description: "Bearer token in an Authorization header",
			Pattern:     `(?i)\bbearer\s+[A-Za-z0-9_\-\.=]{20,}`,
			Keywords:    []string{"bearer"},
			Severity:    "medium",
		},
		{
			ID:          "generic-api-key",
			Description: "API key assignment",
			Pattern:     `(?i)\b(?:api[_-]?key|access[_-]?token|auth[_-]?token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`,
			Keywords:    []string{"key", "token"},
			Severity:    "medium",
		},
		{
			ID:          "password-assignment",
			Description: "Password or secret assignment",
			Pattern:     `(?i)\b(?:password|passwd|secret|client_secret)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords:    []string{"pass", "secret"},
			Severity:    "low",
		},
	}
}
