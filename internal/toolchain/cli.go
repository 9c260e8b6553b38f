package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"github.com/pwa-builder/PWABuilder-sub006/model"
	"go.opentelemetry.io/otel/attribute"
)

// FetchEngineEnv carries the fetch engine to the project generator process.
const FetchEngineEnv = "PWA_FETCH_ENGINE"

const (
	keyValidityDays = "20000"
	keySize         = "2048"
	maxOutputBytes  = 1024 * 1024
	errorTailBytes  = 4096
)

var sha256Re = regexp.MustCompile(`SHA256:\s*([0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){31})`)

// CLI runs the toolchain as local processes.
type CLI struct {
	generator []string
	gradle    string
	keytool   string
	apksigner string
	jarsigner string
}

// NewCLI builds a CLI toolchain from cfg. PROJECT_GENERATOR may carry leading
// arguments, for example "npx @bubblewrap/cli".
func NewCLI(cfg *config.ToolchainConfig) (*CLI, error) {
	gen := strings.Fields(cfg.PROJECT_GENERATOR)
	if len(gen) == 0 {
		return nil, fmt.Errorf("KEY: PROJECT_GENERATOR is empty")
	}
	return &CLI{
		generator: gen,
		gradle:    cfg.GRADLE_PATH,
		keytool:   cfg.KEYTOOL_PATH,
		apksigner: cfg.APKSIGNER_PATH,
		jarsigner: cfg.JARSIGNER_PATH,
	}, nil
}

// NewCLIFromEnv reads the toolchain configuration from the environment.
func NewCLIFromEnv() (*CLI, error) {
	cfg, err := config.GetToolchainConfig()
	if err != nil {
		return nil, err
	}
	return NewCLI(cfg)
}

func (c *CLI) GenerateProject(ctx context.Context, dir, manifestPath string, engine packaging.FetchEngine) error {
	args := append(append([]string{}, c.generator[1:]...),
		"update", "--skipVersionUpgrade", "--manifest="+manifestPath)
	env := []string{FetchEngineEnv + "=" + string(engine)}
	_, err := c.run(ctx, "generate project", dir, env, c.generator[0], args...)
	return err
}

func (c *CLI) Build(ctx context.Context, dir string) (string, error) {
	if _, err := c.run(ctx, "gradle assembleRelease", dir, nil, c.gradle, "assembleRelease", "--stacktrace"); err != nil {
		return "", err
	}
	return expectFile("gradle assembleRelease", UnsignedApkPath(dir))
}

func (c *CLI) CreateKey(ctx context.Context, key SigningKey, id KeyIdentity) error {
	if id.FullName == "" || id.Organization == "" || id.OrganizationalUnit == "" || id.CountryCode == "" {
		return packaging.NewError(packaging.KindToolchain, "keytool genkeypair", fmt.Sprintf(
			"missing required signing info. Full name: %s, Organization: %s, Organizational Unit: %s, Country Code: %s",
			id.FullName, id.Organization, id.OrganizationalUnit, id.CountryCode))
	}
	if err := util.RemoveFileIfExists(key.Path); err != nil {
		return packaging.Wrap(packaging.KindToolchain, "keytool genkeypair", err)
	}
	_, err := c.run(ctx, "keytool genkeypair", "", nil, c.keytool,
		"-genkeypair",
		"-dname", distinguishedName(id),
		"-alias", key.Alias,
		"-keypass", key.KeyPassword,
		"-keystore", key.Path,
		"-storepass", key.StorePassword,
		"-validity", keyValidityDays,
		"-keyalg", "RSA",
		"-keysize", keySize,
	)
	return err
}

func (c *CLI) Sign(ctx context.Context, key SigningKey, apkPath, outPath string) error {
	if _, err := c.run(ctx, "apksigner sign", "", nil, c.apksigner,
		"sign",
		"--ks", key.Path,
		"--ks-key-alias", key.Alias,
		"--ks-pass", "pass:"+key.StorePassword,
		"--key-pass", "pass:"+key.KeyPassword,
		"--out", outPath,
		apkPath,
	); err != nil {
		return err
	}
	_, err := expectFile("apksigner sign", outPath)
	return err
}

func (c *CLI) Fingerprint(ctx context.Context, key SigningKey) (string, error) {
	out, err := c.run(ctx, "keytool list", "", nil, c.keytool,
		"-list", "-v",
		"-keystore", key.Path,
		"-alias", key.Alias,
		"-storepass", key.StorePassword,
		"-keypass", key.KeyPassword,
	)
	if err != nil {
		return "", err
	}
	return ParseSHA256Fingerprint(string(out))
}

func (c *CLI) BuildBundle(ctx context.Context, dir string) (string, error) {
	if _, err := c.run(ctx, "gradle bundleRelease", dir, nil, c.gradle, "bundleRelease", "--stacktrace"); err != nil {
		return "", err
	}
	return expectFile("gradle bundleRelease", BundlePath(dir))
}

func (c *CLI) SignBundle(ctx context.Context, key SigningKey, bundlePath, outPath string) error {
	if _, err := c.run(ctx, "jarsigner", "", nil, c.jarsigner,
		"-verbose",
		"-sigalg", "SHA256withRSA",
		"-digestalg", "SHA-256",
		"-keystore", key.Path,
		"-storepass", key.StorePassword,
		"-keypass", key.KeyPassword,
		"-signedjar", outPath,
		bundlePath,
		key.Alias,
	); err != nil {
		return err
	}
	_, err := expectFile("jarsigner", outPath)
	return err
}

// ParseSHA256Fingerprint extracts the SHA256 certificate fingerprint from
// keytool -list -v output.
func ParseSHA256Fingerprint(out string) (string, error) {
	m := sha256Re.FindStringSubmatch(out)
	if m == nil {
		return "", packaging.NewError(packaging.KindBestEffort, "keytool list", "couldn't find SHA256 fingerprint")
	}
	return strings.ToUpper(m[1]), nil
}

// run executes one toolchain program. Arguments are passed to the process
// as-is without a shell, so passwords need no quoting. Only op is used in
// errors and spans; arguments may hold secrets.
func (c *CLI) run(ctx context.Context, op, dir string, env []string, name string, args ...string) ([]byte, error) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, "Toolchain/"+op)
	defer span.End()
	span.SetAttributes(attribute.String("program", name))

	log := logger.FromContext(ctx)
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	out := &tailBuffer{max: maxOutputBytes}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	log.Debug().Str("op", op).Dur("took", time.Since(start)).Msg("toolchain step finished")
	if err != nil {
		err = packaging.MarkTransient(packaging.Wrap(packaging.KindToolchain, op,
			fmt.Errorf("%w: %s", err, tail(out.Bytes(), errorTailBytes))))
		util.RecordSpanError(span, err)
		return out.Bytes(), err
	}
	return out.Bytes(), nil
}

func distinguishedName(id KeyIdentity) string {
	esc := strings.NewReplacer(`\`, `\\`, `,`, `\,`)
	return fmt.Sprintf("CN=%s, OU=%s, O=%s, C=%s",
		esc.Replace(id.FullName), esc.Replace(id.OrganizationalUnit),
		esc.Replace(id.Organization), esc.Replace(id.CountryCode))
}

func expectFile(op, path string) (string, error) {
	if !util.Exists(path) {
		return "", packaging.NewError(packaging.KindToolchain, op, "expected output not found at "+path)
	}
	return path, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte {
	return t.buf
}

// KeyFromDetails converts signing details plus a keystore path into a
// SigningKey and KeyIdentity.
func KeyFromDetails(d model.SigningDetails, path string) (SigningKey, KeyIdentity) {
	key := SigningKey{
		Path:          path,
		Alias:         d.Alias,
		StorePassword: d.StorePassword,
		KeyPassword:   d.KeyPassword,
	}
	id := KeyIdentity{
		FullName:           d.FullName,
		Organization:       d.Organization,
		OrganizationalUnit: d.OrganizationalUnit,
		CountryCode:        d.CountryCode,
	}
	return key, id
}
