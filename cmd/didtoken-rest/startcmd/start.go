/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/couchdb"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/mongodb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/didresolver"
	"github.com/trustbloc/didtoken/pkg/keystore"
	"github.com/trustbloc/didtoken/pkg/longformdid"
	"github.com/trustbloc/didtoken/pkg/restapi"
	"github.com/trustbloc/didtoken/pkg/restapi/operation"
	"github.com/trustbloc/didtoken/pkg/validation"
	"github.com/trustbloc/didtoken/pkg/validator"
	cmdutils "github.com/trustbloc/didtoken/pkg/utils/cmd"
)

const (
	hostURLFlagName      = "host-url"
	hostURLEnvKey        = "DIDTOKEN_HOST_URL"
	hostURLFlagShorthand = "u"
	hostURLFlagUsage     = "URL to run the DID token instance on. Format: HostName:Port." +
		" Alternatively, this can be set with the following environment variable: " + hostURLEnvKey

	tlsCertFileFlagName  = "tls-cert-file"
	tlsCertFileEnvKey    = "DIDTOKEN_TLS_CERT_FILE"
	tlsCertFileFlagUsage = "TLS certificate file. If set together with the key file, the server uses HTTPS." +
		" Alternatively, this can be set with the following environment variable: " + tlsCertFileEnvKey

	tlsKeyFileFlagName  = "tls-key-file"
	tlsKeyFileEnvKey    = "DIDTOKEN_TLS_KEY_FILE"
	tlsKeyFileFlagUsage = "TLS private key file." +
		" Alternatively, this can be set with the following environment variable: " + tlsKeyFileEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "DIDTOKEN_DATABASE_TYPE"
	databaseTypeFlagShorthand = "t"
	databaseTypeFlagUsage     = "The type of database used to store keys. Supported options: mem, mongodb, couchdb." +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseTypeMemOption     = "mem"
	databaseTypeMongoDBOption = "mongodb"
	databaseTypeCouchDBOption = "couchdb"

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "DIDTOKEN_DATABASE_URL"
	databaseURLFlagShorthand = "l"
	databaseURLFlagUsage     = "The URL of the database. Not needed if using memstore." +
		" For MongoDB, this is the connection string. For CouchDB, include the username:password@ text if required." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databasePrefixFlagName      = "database-prefix"
	databasePrefixEnvKey        = "DIDTOKEN_DATABASE_PREFIX"
	databasePrefixFlagShorthand = "p"
	databasePrefixFlagUsage     = "An optional prefix to be used when creating and retrieving underlying databases." +
		" Alternatively, this can be set with the following environment variable: " + databasePrefixEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutEnvKey    = "DIDTOKEN_DATABASE_TIMEOUT"
	databaseTimeoutFlagUsage = "Total time to keep retrying the database connection, e.g. 30s. Defaults to 30s." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey

	resolverURLFlagName      = "resolver-url"
	resolverURLEnvKey        = "DIDTOKEN_RESOLVER_URL"
	resolverURLFlagShorthand = "r"
	resolverURLFlagUsage     = "URL of a universal resolver used for DIDs that are not long-form." +
		" Alternatively, this can be set with the following environment variable: " + resolverURLEnvKey

	didMethodFlagName  = "did-method"
	didMethodEnvKey    = "DIDTOKEN_DID_METHOD"
	didMethodFlagUsage = "Method of the DIDs created by the server. Defaults to " + longformdid.DefaultMethod + "." +
		" Alternatively, this can be set with the following environment variable: " + didMethodEnvKey

	audienceFlagName  = "audience"
	audienceEnvKey    = "DIDTOKEN_AUDIENCE"
	audienceFlagUsage = "Expected audience of top level tokens. Any audience is accepted when not set." +
		" Alternatively, this can be set with the following environment variable: " + audienceEnvKey

	issuersFlagName  = "issuers"
	issuersEnvKey    = "DIDTOKEN_ISSUERS"
	issuersFlagUsage = "Comma separated list of trusted id token issuers. Any issuer is accepted when not set." +
		" Alternatively, this can be set with the following environment variable: " + issuersEnvKey

	subjectDIDFlagName  = "subject-did"
	subjectDIDEnvKey    = "DIDTOKEN_SUBJECT_DID"
	subjectDIDFlagUsage = "Expected subject of top level verifiable credentials." +
		" Alternatively, this can be set with the following environment variable: " + subjectDIDEnvKey

	clockSkewFlagName  = "clock-skew"
	clockSkewEnvKey    = "DIDTOKEN_CLOCK_SKEW"
	clockSkewFlagUsage = "Tolerance applied to token expiry and not-before checks, e.g. 5m." +
		" Alternatively, this can be set with the following environment variable: " + clockSkewEnvKey

	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "DIDTOKEN_LOG_LEVEL"
	logLevelFlagUsage = "Default log level. Possible values [CRITICAL] [ERROR] [WARNING] [INFO] [DEBUG]." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	defaultDatabaseTimeout = 30 * time.Second
)

var logger = log.New("didtoken-rest")

var errMissingHostURL = errors.New("host URL not provided")
var errInvalidDatabaseType = errors.New("database type not set to a valid type." +
	" run start --help to see the available options")

// nolint: gochecknoglobals
var supportedStorageProviders = map[string]func(url, prefix string, timeout time.Duration) (storage.Provider, error){
	databaseTypeMemOption: func(_, _ string, _ time.Duration) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeMongoDBOption: func(url, prefix string, timeout time.Duration) (storage.Provider, error) {
		return mongodb.NewProvider(url, mongodb.WithDBPrefix(prefix), mongodb.WithTimeout(timeout))
	},
	databaseTypeCouchDBOption: func(url, prefix string, _ time.Duration) (storage.Provider, error) {
		return couchdb.NewProvider(url, couchdb.WithDBPrefix(prefix))
	},
}

type didTokenParameters struct {
	srv             server
	hostURL         string
	tlsCertFile     string
	tlsKeyFile      string
	databaseType    string
	databaseURL     string
	databasePrefix  string
	databaseTimeout time.Duration
	resolverURL     string
	didMethod       string
	expected        validation.Expected
	clockSkew       time.Duration
	logLevel        string
}

type server interface {
	ListenAndServe(host, certFile, keyFile string, handler http.Handler) error
}

// HTTPServer represents an actual HTTP server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
// HTTPS is used when both TLS files are given.
func (s *HTTPServer) ListenAndServe(host, certFile, keyFile string, handler http.Handler) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, handler)
	}

	return http.ListenAndServe(host, handler)
}

// GetStartCmd returns the Cobra start command.
func GetStartCmd(srv server) *cobra.Command {
	startCmd := createStartCmd(srv)

	createFlags(startCmd)

	return startCmd
}

func createStartCmd(srv server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start DID token service",
		Long:  "Start DID token service",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getParameters(cmd)
			if err != nil {
				return err
			}

			parameters.srv = srv

			return startDIDTokenService(parameters)
		},
	}
}

func getParameters(cmd *cobra.Command) (*didTokenParameters, error) { // nolint: funlen
	hostURL, err := cmdutils.GetUserSetVar(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	tlsCertFile, err := cmdutils.GetUserSetVar(cmd, tlsCertFileFlagName, tlsCertFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsKeyFile, err := cmdutils.GetUserSetVar(cmd, tlsKeyFileFlagName, tlsKeyFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	databaseType, err := cmdutils.GetUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	databaseURL, err := cmdutils.GetUserSetVar(cmd, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	databasePrefix, err := cmdutils.GetUserSetVar(cmd, databasePrefixFlagName, databasePrefixEnvKey, true)
	if err != nil {
		return nil, err
	}

	databaseTimeout, err := cmdutils.GetDuration(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, true,
		defaultDatabaseTimeout)
	if err != nil {
		return nil, err
	}

	resolverURL, err := cmdutils.GetUserSetVar(cmd, resolverURLFlagName, resolverURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	didMethod, err := cmdutils.GetUserSetVar(cmd, didMethodFlagName, didMethodEnvKey, true)
	if err != nil {
		return nil, err
	}

	audience, err := cmdutils.GetUserSetVar(cmd, audienceFlagName, audienceEnvKey, true)
	if err != nil {
		return nil, err
	}

	issuers, err := cmdutils.GetUserSetVars(cmd, issuersFlagName, issuersEnvKey, true)
	if err != nil {
		return nil, err
	}

	subjectDID, err := cmdutils.GetUserSetVar(cmd, subjectDIDFlagName, subjectDIDEnvKey, true)
	if err != nil {
		return nil, err
	}

	clockSkew, err := cmdutils.GetDuration(cmd, clockSkewFlagName, clockSkewEnvKey, true, 0)
	if err != nil {
		return nil, err
	}

	logLevel, err := cmdutils.GetUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
	if err != nil {
		return nil, err
	}

	return &didTokenParameters{
		hostURL:         hostURL,
		tlsCertFile:     tlsCertFile,
		tlsKeyFile:      tlsKeyFile,
		databaseType:    databaseType,
		databaseURL:     databaseURL,
		databasePrefix:  databasePrefix,
		databaseTimeout: databaseTimeout,
		resolverURL:     resolverURL,
		didMethod:       didMethod,
		expected:        validation.Expected{Audience: audience, Issuers: issuers, SubjectDID: subjectDID},
		clockSkew:       clockSkew,
		logLevel:        logLevel,
	}, nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostURLFlagName, hostURLFlagShorthand, "", hostURLFlagUsage)
	startCmd.Flags().String(tlsCertFileFlagName, "", tlsCertFileFlagUsage)
	startCmd.Flags().String(tlsKeyFileFlagName, "", tlsKeyFileFlagUsage)
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)
	startCmd.Flags().StringP(databasePrefixFlagName, databasePrefixFlagShorthand, "", databasePrefixFlagUsage)
	startCmd.Flags().String(databaseTimeoutFlagName, "", databaseTimeoutFlagUsage)
	startCmd.Flags().StringP(resolverURLFlagName, resolverURLFlagShorthand, "", resolverURLFlagUsage)
	startCmd.Flags().String(didMethodFlagName, "", didMethodFlagUsage)
	startCmd.Flags().String(audienceFlagName, "", audienceFlagUsage)
	startCmd.Flags().StringSlice(issuersFlagName, nil, issuersFlagUsage)
	startCmd.Flags().String(subjectDIDFlagName, "", subjectDIDFlagUsage)
	startCmd.Flags().String(clockSkewFlagName, "", clockSkewFlagUsage)
	startCmd.Flags().String(logLevelFlagName, "", logLevelFlagUsage)
}

func startDIDTokenService(parameters *didTokenParameters) error {
	if parameters.hostURL == "" {
		return errMissingHostURL
	}

	err := setLogLevel(parameters.logLevel)
	if err != nil {
		return err
	}

	config, err := createOperationConfig(parameters)
	if err != nil {
		return err
	}

	controller, err := restapi.New(config)
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	router.UseEncodedPath()

	for _, handler := range controller.GetOperations() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	logger.Infof("Starting DID token rest server on host %s", parameters.hostURL)

	err = parameters.srv.ListenAndServe(parameters.hostURL, parameters.tlsCertFile, parameters.tlsKeyFile, handler)
	if err != nil {
		return fmt.Errorf("failed to start DID token rest server on host [%s], cause: %w", parameters.hostURL, err)
	}

	return nil
}

func createOperationConfig(parameters *didTokenParameters) (*operation.Config, error) {
	storageProvider, err := createStorageProvider(parameters)
	if err != nil {
		return nil, err
	}

	keyStore, err := keystore.New(storageProvider)
	if err != nil {
		return nil, err
	}

	crypto, err := cryptoprovider.New(cryptoprovider.WithStorageProvider(storageProvider))
	if err != nil {
		return nil, err
	}

	resolver, err := createResolver(parameters, crypto)
	if err != nil {
		return nil, err
	}

	var creatorOpts []longformdid.Option

	if parameters.didMethod != "" {
		creatorOpts = append(creatorOpts, longformdid.WithMethod(parameters.didMethod))
	}

	var validatorOpts []validator.Option

	if parameters.clockSkew > 0 {
		validatorOpts = append(validatorOpts, validator.WithClockSkew(parameters.clockSkew))
	}

	return &operation.Config{
		Validator: validator.New(tokenValidators(parameters.expected), resolver, crypto, validatorOpts...),
		Creator:   longformdid.New(crypto, keyStore, creatorOpts...),
		Resolver:  resolver,
	}, nil
}

func tokenValidators(expected validation.Expected) map[claimtoken.TokenType]validator.TokenValidator {
	return map[claimtoken.TokenType]validator.TokenValidator{
		claimtoken.IDToken:                validator.NewIDTokenValidator(expected),
		claimtoken.VerifiableCredential:   validator.NewVerifiableCredentialValidator(expected),
		claimtoken.VerifiablePresentation: validator.NewVerifiablePresentationValidator(expected),
		claimtoken.SIOP:                   validator.NewSIOPValidator(expected),
		claimtoken.SelfIssued:             validator.NewSelfIssuedValidator(),
	}
}

// Long-form DIDs are always resolved locally. Other DIDs go to the universal resolver when one is configured.
func createResolver(parameters *didTokenParameters, crypto cryptoprovider.Provider) (didresolver.Resolver, error) {
	resolvers := []didresolver.Resolver{didresolver.NewLongFormResolver(crypto)}

	if parameters.resolverURL != "" {
		httpResolver, err := didresolver.NewHTTPResolver(parameters.resolverURL)
		if err != nil {
			return nil, err
		}

		resolvers = append(resolvers, httpResolver)
	}

	return didresolver.NewChain(resolvers...), nil
}

func createStorageProvider(parameters *didTokenParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[strings.ToLower(parameters.databaseType)]
	if !supported {
		return nil, errInvalidDatabaseType
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.databaseURL, parameters.databasePrefix, parameters.databaseTimeout)

			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), uint64(parameters.databaseTimeout/time.Second)),
		func(retryErr error, t time.Duration) {
			logger.Warnf("failed to connect to storage, will sleep for %s before trying again : %s", t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.databaseURL, err)
	}

	return store, nil
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}
