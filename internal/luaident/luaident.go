// Package luaident turns arbitrary strings from API documents into Lua
// identifiers, string literals and member accessors.
package luaident

import (
	"fmt"
	"strings"
)

// keywords are the reserved words of Lua 5.4 ("goto" included even though
// 5.1 does not reserve it).
var keywords = map[string]struct{}{
	"and": {}, "break": {}, "do": {}, "else": {}, "elseif": {}, "end": {},
	"false": {}, "for": {}, "function": {}, "goto": {}, "if": {}, "in": {},
	"local": {}, "nil": {}, "not": {}, "or": {}, "repeat": {}, "return": {},
	"then": {}, "true": {}, "until": {}, "while": {},
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	"\t", `\t`,
	`"`, `\"`,
)

// Fallback is used when a name sanitizes to nothing.
const Fallback = "param"

// IsKeyword reports whether s is a reserved Lua word.
func IsKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

// IsIdentifier reports whether key can be used after a dot or as a local name.
func IsIdentifier(key string) bool {
	if key == "" || IsKeyword(key) {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isWordByte(c) && (i > 0 || !isDigit(c)) {
			continue
		}
		return false
	}
	return true
}

// ToIdentifier replaces every character outside [A-Za-z0-9_] with "_",
// prefixes a leading digit with "_", falls back to "param" when empty and
// suffixes keywords with "_".
func ToIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r < 0x80 && isWordByte(byte(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return Fallback
	}
	if isDigit(name[0]) {
		name = "_" + name
	}
	if IsKeyword(name) {
		name += "_"
	}
	return name
}

// Unique is the result of UniqueIdentifiers.
type Unique struct {
	// Mapping holds the last identifier assigned to each raw name. Bind
	// positional parameters through Ordered, not Mapping.
	Mapping map[string]string
	// Ordered has one distinct identifier per input position.
	Ordered []string
}

// UniqueIdentifiers sanitizes raw names in order, suffixing "_2", "_3", ...
// when a name is already taken by an earlier entry or by one of reserved.
func UniqueIdentifiers(raw []string, reserved ...string) Unique {
	used := make(map[string]struct{}, len(raw)+len(reserved))
	for _, r := range reserved {
		used[r] = struct{}{}
	}
	out := Unique{
		Mapping: make(map[string]string, len(raw)),
		Ordered: make([]string, 0, len(raw)),
	}
	for _, name := range raw {
		base := ToIdentifier(name)
		candidate := base
		for i := 2; ; i++ {
			if _, taken := used[candidate]; !taken {
				break
			}
			candidate = fmt.Sprintf("%s_%d", base, i)
		}
		used[candidate] = struct{}{}
		out.Mapping[name] = candidate
		out.Ordered = append(out.Ordered, candidate)
	}
	return out
}

// StringLiteral quotes value as a double-quoted Lua string.
func StringLiteral(value string) string {
	return `"` + literalEscaper.Replace(value) + `"`
}

// ChildAccessor returns parentRef.key when key is a plain identifier and
// parentRef["key"] otherwise.
func ChildAccessor(parentRef, key string) string {
	if IsIdentifier(key) {
		return parentRef + "." + key
	}
	return parentRef + "[" + StringLiteral(key) + "]"
}

func isWordByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
