package detection

import "regexp"

// signatureSources is the curated injection signature set. Inputs are
// normalized to lower case before matching; the case-insensitive flags keep
// each pattern usable on its own.
var signatureSources = []string{
	// keyword sequences
	`(?i)\bselect\b\s*\**\s*\bfrom\b`, `(?i)\bunion\b\s*\bselect\b`, `(?i)\border by\b\s*\d+`,
	`(?i)\bcase when\b`, `(?i)\binsert into\b`, `(?i)\bupdate\b\s*\bset\b`,
	`(?i)\bdelete from\b`, `(?i)\bdrop table\b`, `(?i)\bexec\b`, `(?i)\breplace into\b`,
	`(?i)\balter table\b`, `(?i)\btruncate\b`, `(?i)\bcreate\b\s*\btable\b`,

	// authentication bypass idioms
	`(?i)\band\s*\d+=\d+\b`, `(?i)\bor\s*\d+=\d+\b`, `(?i)\bsleep\s*\(\d+\)`, `(?i)\bwaitfor delay\b`,
	`(?i)\bif\s*\(.*=.*\)`, `(?i)\btrue\b.*\bfalse\b`, `(?i)\bnull is null\b`,

	// inline comment and encoding obfuscation
	`(?i)\bselect\s*/\*\*/\s*\*?\s*from\b`,
	`(?i)\bunion\s*/\*\*/\s*select\b`,
	`(?i)\bunion%20select\b`, `(?i)\bunion%09select\b`,
	`(?i)\bselect%20from\b`, `(?i)\bselect%09from\b`,
	`(?i)or\s*1\s*=\s*1`, `(?i)and\s*1\s*=\s*1`, `(?i)1=1`,

	// system access and out-of-band
	`(?i)\bxp_cmdshell\b`, `(?i)\bsystem_user\b`, `(?i)\bcurrent_user\b`, `(?i)\buser\b\(\)`,
	`(?i)\bpg_sleep\b`, `(?i)\bschema_name\b`, `(?i)\btable_name\b`, `(?i)\bcolumn_name\b`,

	// hex and char encoding
	`(?i)0x[0-9a-f]+`,
	`(?i)char\([0-9,]+\)`, `(?i)concat\(`, `(?i)union all select`,
	`(?i)base64_decode\(`, `(?i)unhex\(`,

	// comment and terminator tokens
	`--`, `#`, `/\*`, `\*/`, `;`, `'`,

	// subqueries
	`(?i)\bexists\s*\(`, `(?i)\bnot exists\s*\(`, `(?i)\bselect.*\bfrom\s*\(.*select`,

	// mixed-case keywords
	`(?i)[Ss][Ee][Ll][Ee][Cc][Tt]`, `(?i)[Uu][Nn][Ii][Oo][Nn]`, `(?i)[Oo][Rr][Dd][Ee][Rr]`,
}

// Signatures is compiled once and never mutated afterwards.
var Signatures = compileSignatures(signatureSources)

func compileSignatures(sources []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		out = append(out, regexp.MustCompile(src))
	}
	return out
}
