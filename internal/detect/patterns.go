package detect

import "regexp"

// Category is one ordered classifier check: a named family of patterns that
// maps to a fixed attack type and severity. The first category with a
// matching pattern wins, so list order is semantically load-bearing.
type Category struct {
	Name     string
	Type     AttackType
	Severity Severity
	patterns []*regexp.Regexp
}

// NewCategory compiles the given patterns into a Category. Patterns are
// matched case-insensitively. Panics on an invalid pattern, which is
// acceptable because categories are built from static tables at startup.
func NewCategory(name string, attackType AttackType, severity Severity, patterns ...string) Category {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+p))
	}
	return Category{Name: name, Type: attackType, Severity: severity, patterns: compiled}
}

func (c Category) match(haystack string) (string, bool) {
	for _, re := range c.patterns {
		if m := re.FindString(haystack); m != "" {
			return m, true
		}
	}
	return "", false
}

// DefaultCategories returns the built-in category list in priority order,
// highest first. Callers get a fresh slice and may reorder or extend it
// before handing it to NewClassifier.
func DefaultCategories() []Category {
	return []Category{
		NewCategory("cryptominer signature", AttackCryptominer, SeverityCritical,
			`coinhive`,
			`coin-hive`,
			`cryptonight`,
			`stratum\+tcp://`,
			`xmrig`,
			`minerd`,
			`jsecoin`,
			`webminepool`,
			`pool\.minexmr`,
			`monero.{0,20}(pool|wallet)`,
		),
		NewCategory("malware signature", AttackMalware, SeverityCritical,
			`eval\s*\(\s*base64_decode`,
			`eval\s*\(\s*gzinflate`,
			`eval\s*\(\s*gzuncompress`,
			`eval\s*\(\s*str_rot13`,
			`eval\s*\(\s*string\.fromcharcode`,
			`document\.cookie.{0,40}(location|http)`,
			`(onkeypress|onkeydown)\s*=.{0,60}xmlhttprequest`,
			`keylogger`,
			`<iframe[^>]{0,80}(hidden|display\s*:\s*none)`,
		),
		NewCategory("webshell signature", AttackWebshellUpload, SeverityCritical,
			`c99\.php`,
			`r57\.php`,
			`wso\.php`,
			`b374k`,
			`indoxploit`,
			`alfa.?shell`,
			`weevely`,
			`\$_(post|get|request)\s*\[[^\]]*\]\s*\)?\s*;?\s*(eval|system|exec|passthru|shell_exec)`,
			`(eval|system|exec|passthru|shell_exec)\s*\(\s*\$_(post|get|request)`,
			`bash\s+-i\s*>?&?\s*/dev/tcp/`,
			`nc(\.traditional)?\s+-e\s+/bin/(ba)?sh`,
			`rm\s+-f\s+/tmp/f\s*;\s*mkfifo`,
			`python\d?\s+-c\s+['"]import\s+(socket|pty)`,
		),
		NewCategory("ransomware indicator", AttackRansomware, SeverityCritical,
			`ransomware`,
			`your\s+files\s+(have\s+been|are)\s+encrypted`,
			`decryptor`,
			`readme_for_decrypt`,
			`lockbit`,
			`wannacry`,
			`encrypt_all`,
		),
		NewCategory("botnet c2 indicator", AttackBotnetC2, SeverityCritical,
			`/gate\.php`,
			`/panel/gate`,
			`mirai`,
			`gafgyt`,
			`mozi\.[am]`,
			`/bins/\w+\.(sh|mips|arm)`,
			`botnet`,
			`c2\s*server`,
		),
		NewCategory("data exfiltration", AttackDataExfiltration, SeverityCritical,
			`into\s+(out|dump)file`,
			`mysqldump`,
			`pg_dump`,
			`information_schema.{0,40}outfile`,
			`(users|database|db_backup|customers)\.sql(\.gz)?`,
			`dump\s+database`,
		),
		NewCategory("credential path", AttackEnvDisclosure, SeverityCritical,
			`\.env(\.\w+)?($|[^a-z0-9])`,
			`\.git(/|config|ignore$)`,
			`\.svn/`,
			`\.hg/`,
			`id_rsa`,
			`id_ecdsa`,
			`id_ed25519`,
			`\.ssh/`,
			`\.aws/credentials`,
			`\.npmrc`,
			`\.htpasswd`,
			`wp-config\.php`,
			`\.(pem|p12|pfx|jks)($|[^a-z0-9])`,
			`(database|secrets|credentials)\.(yml|yaml|json)`,
			`settings\.py`,
			`\.docker/config\.json`,
		),
		NewCategory("command injection", AttackCommandInjection, SeverityCritical,
			`[;|]\s*(wget|curl|cat|chmod|nc|bash|sh|rm|id|whoami|uname)\b`,
			"`[^`]*(wget|curl|cat|id|whoami)[^`]*`",
			`\$\((wget|curl|cat|id|whoami|uname)[^)]*\)`,
			`%0a(wget|curl|cat|id|whoami)`,
			`/bin/(ba)?sh\b`,
			`cmd\.exe`,
			`powershell(\.exe)?\s`,
			`chmod\s+\+?[0-7x]+`,
			`&&\s*(wget|curl|cat|id|whoami)\b`,
		),
		NewCategory("sql injection", AttackSQLInjection, SeverityHigh,
			`union(\s|%20|\+)+(all(\s|%20|\+)+)?select`,
			`'\s*or\s*'?1'?\s*=\s*'?1`,
			`"\s*or\s*"?1"?\s*=\s*"?1`,
			`\bor\s+1\s*=\s*1\b`,
			`sleep\s*\(\s*\d+\s*\)`,
			`benchmark\s*\(\s*\d+`,
			`waitfor\s+delay`,
			`;\s*drop\s+table`,
			`'\s*--`,
			`information_schema\.tables`,
			`extractvalue\s*\(`,
			`updatexml\s*\(`,
		),
		NewCategory("nosql injection", AttackSQLInjection, SeverityHigh,
			`\$ne["'\]:\s]`,
			`\$gt["'\]:\s]`,
			`\$where["'\]:\s]`,
			`\$regex["'\]:\s]`,
			`\{\s*["']\$(ne|gt|lt|in|nin|or|and)["']`,
			`\[\$(ne|gt|regex|where)\]`,
		),
		NewCategory("cross-site scripting", AttackXSS, SeverityHigh,
			`<script`,
			`javascript\s*:`,
			`onerror\s*=`,
			`onload\s*=`,
			`<svg[^>]*on\w+\s*=`,
			`<img[^>]*onerror`,
			`alert\s*\(`,
			`document\.write\s*\(`,
			`expression\s*\(`,
		),
		NewCategory("path traversal", AttackPathTraversal, SeverityHigh,
			`\.\./`,
			`\.\.\\`,
			`\.\.%2f`,
			`%2e%2e%2f`,
			`/etc/passwd`,
			`/etc/shadow`,
			`/proc/self/environ`,
			`c:\\windows\\system32`,
			`php://(filter|input)`,
			`expect://`,
			`zip://`,
			`data://text`,
		),
		NewCategory("xml external entity", AttackXXE, SeverityHigh,
			`<!entity`,
			`<!doctype[^>]{0,100}\[`,
			`system\s+["']file:`,
			`xxe`,
		),
		NewCategory("server-side request forgery", AttackSSRF, SeverityHigh,
			`169\.254\.169\.254`,
			`metadata\.google\.internal`,
			`gopher://`,
			`dict://`,
			`(url|uri|target|dest|redirect_uri)=https?(%3a|:)//(127\.0\.0\.1|localhost|0\.0\.0\.0|\[::1\])`,
			`file:///`,
		),
		NewCategory("template injection", AttackTemplateInjection, SeverityHigh,
			`\{\{\s*\d+\s*\*\s*\d+\s*\}\}`,
			`\{\{\s*config`,
			`\{\{\s*self\.`,
			`\{%\s*(import|include|for|if)`,
			`\$\{\s*\d+\s*\*\s*\d+\s*\}`,
			`\$\{jndi:`,
			`<%=.{0,40}%>`,
			`#\{\s*\d+\s*\*\s*\d+\s*\}`,
		),
		NewCategory("deserialization payload", AttackDeserialization, SeverityHigh,
			`ro0ab`,
			`aced0005`,
			`aaeaaad`,
			`o:\d+:"[a-z_\\]+":\d+:\{`,
			`!!python/object`,
			`ysoserial`,
			`\bpickle\.loads\b`,
		),
		NewCategory("header or parameter injection", AttackHeaderInjection, SeverityMedium,
			`\*\)\(\w+=\*`,
			`\)\(\|\(`,
			`%0d%0a(set-cookie|location|content-length)`,
			`\\r\\n(set-cookie|location)`,
			`x-original-url`,
			`x-rewrite-url`,
			`x-forwarded-host\s*:`,
			`(redirect|next|return_to|continue|goto)=https?(%3a|:)//`,
			`__proto__`,
			`constructor\[prototype\]`,
			`constructor\.prototype`,
		),
		NewCategory("admin panel scan", AttackBruteForce, SeverityMedium,
			`wp-login\.php`,
			`wp-admin`,
			`xmlrpc\.php`,
			`wp-content/plugins`,
			`phpmyadmin`,
			`/pma\d*/`,
			`adminer(-\d[\d.]*)?\.php`,
			`/administrator/index\.php`,
			`/manager/html`,
			`/cpanel`,
			`/webmail`,
			`typo3`,
			`/user/login.{0,20}drupal`,
		),
		NewCategory("backup file probe", AttackScanner, SeverityMedium,
			`\.(bak|old|backup|swp|save)($|[^a-z0-9])`,
			`(backup|dump|site|www)\.(zip|tar\.gz|tgz|rar|7z)`,
			`\.sql($|[^a-z0-9])`,
			`\.ds_store`,
		),
		NewCategory("debug endpoint probe", AttackScanner, SeverityLow,
			`phpinfo`,
			`/server-status`,
			`/actuator`,
			`/debug($|/)`,
			`/console($|/)`,
			`/trace($|/)`,
			`web\.config`,
			`\.vscode/`,
			`/swagger`,
		),
		NewCategory("scanner user-agent", AttackScanner, SeverityLow,
			`sqlmap`,
			`nikto`,
			`nmap`,
			`masscan`,
			`nuclei`,
			`wpscan`,
			`dirbuster`,
			`gobuster`,
			`ffuf`,
			`feroxbuster`,
			`acunetix`,
			`nessus`,
			`zgrab`,
			`burpsuite`,
			`whatweb`,
		),
	}
}
