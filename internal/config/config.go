// Package config loads the configuration of the tokenizers command line.
//
// Values are taken, in order of priority, from the command line flags, the TOKENIZERS_*
// environment variables, the configuration file and the defaults.
package config

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix of the environment variables, e.g. TOKENIZERS_TOKENIZER_PATH.
const EnvPrefix = "TOKENIZERS"

// ConfigName is the name, without extension, of the configuration file looked up in the
// current directory when none is given.
const ConfigName = "tokenizers"

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Encode    EncodeConfig    `mapstructure:"encode"`
	Train     TrainConfig     `mapstructure:"train"`
}

// TokenizerConfig selects the tokenizer to load.
type TokenizerConfig struct {
	// Path to a tokenizer.json file, a directory holding one, or the name of a model in the
	// HuggingFace Hub cache.
	Path     string `mapstructure:"path"`
	CacheDir string `mapstructure:"cache_dir"`
	Revision string `mapstructure:"revision"`
}

type EncodeConfig struct {
	AddSpecialTokens bool   `mapstructure:"add_special_tokens"`
	MaxLength        int    `mapstructure:"max_length"`
	Stride           int    `mapstructure:"stride"`
	Direction        string `mapstructure:"direction"`
	PadToLength      int    `mapstructure:"pad_to_length"`
	PadToMultipleOf  int    `mapstructure:"pad_to_multiple_of"`
	Output           string `mapstructure:"output"`
}

type TrainConfig struct {
	Model         string   `mapstructure:"model"`
	VocabSize     int      `mapstructure:"vocab_size"`
	MinFrequency  uint64   `mapstructure:"min_frequency"`
	SpecialTokens []string `mapstructure:"special_tokens"`
	UnkToken      string   `mapstructure:"unk_token"`
	Lowercase     bool     `mapstructure:"lowercase"`
	ShowProgress  bool     `mapstructure:"show_progress"`
}

// Valid values of the enumerated options.
var (
	LogFormats    = []string{"text", "json"}
	Directions    = []string{"right", "left"}
	OutputFormats = []string{"tokens", "ids", "json"}
	TrainModels   = []string{"bpe", "wordpiece", "wordlevel", "unigram"}
)

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Tokenizer: TokenizerConfig{
			Revision: "main",
		},
		Encode: EncodeConfig{
			AddSpecialTokens: true,
			Direction:        "right",
			Output:           "tokens",
		},
		Train: TrainConfig{
			Model:         "bpe",
			VocabSize:     30_000,
			MinFrequency:  0,
			SpecialTokens: []string{"<unk>"},
			UnkToken:      "<unk>",
			ShowProgress:  true,
		},
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
	fs.String("log-format", defaults.LogFormat, "Log format: text or json")
	fs.String("tokenizer-path", defaults.Tokenizer.Path, "Tokenizer file, directory or HuggingFace Hub model name")
	fs.String("tokenizer-cache-dir", defaults.Tokenizer.CacheDir, "HuggingFace Hub cache directory (defaults to the one used by the Python library)")
	fs.String("tokenizer-revision", defaults.Tokenizer.Revision, "Revision of the HuggingFace Hub model")
	fs.Bool("encode-add-special-tokens", defaults.Encode.AddSpecialTokens, "Add the special tokens of the post-processor")
	fs.Int("encode-max-length", defaults.Encode.MaxLength, "Truncate encodings to this length (0 disables truncation)")
	fs.Int("encode-stride", defaults.Encode.Stride, "Number of tokens repeated in overflowing parts")
	fs.String("encode-direction", defaults.Encode.Direction, "Truncation and padding direction: right or left")
	fs.Int("encode-pad-to-length", defaults.Encode.PadToLength, "Pad encodings to this length (0 disables fixed padding)")
	fs.Int("encode-pad-to-multiple-of", defaults.Encode.PadToMultipleOf, "Pad encodings to a multiple of this length")
	fs.String("encode-output", defaults.Encode.Output, "Output format: tokens, ids or json")
	fs.String("train-model", defaults.Train.Model, "Model to train: bpe, wordpiece, wordlevel or unigram")
	fs.Int("train-vocab-size", defaults.Train.VocabSize, "Target vocabulary size")
	fs.Uint64("train-min-frequency", defaults.Train.MinFrequency, "Minimum frequency of merged pairs or words")
	fs.StringSlice("train-special-tokens", defaults.Train.SpecialTokens, "Special tokens, added first to the vocabulary")
	fs.String("train-unk-token", defaults.Train.UnkToken, "Unknown token of the trained model")
	fs.Bool("train-lowercase", defaults.Train.Lowercase, "Lowercase the text before training and encoding")
	fs.Bool("train-show-progress", defaults.Train.ShowProgress, "Show progress bars while training")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, errs.Wrap(errs.ErrConfig, err, "bind flags")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errs.Wrap(errs.ErrConfig, err, "read config file %q", opts.ConfigFile)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, errs.Wrap(errs.ErrConfig, err, "read config file")
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("loaded configuration file", "path", used)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(errs.ErrConfig, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated options and the numeric ranges.
func (c Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	for _, option := range []struct {
		name, value string
		valid       []string
	}{
		{"log_format", c.LogFormat, LogFormats},
		{"encode.direction", c.Encode.Direction, Directions},
		{"encode.output", c.Encode.Output, OutputFormats},
		{"train.model", c.Train.Model, TrainModels},
	} {
		if !slices.Contains(option.valid, strings.ToLower(option.value)) {
			return errs.Errorf(errs.ErrConfig, "invalid %s %q, valid values are %q", option.name, option.value, option.valid)
		}
	}
	if c.Encode.MaxLength < 0 || c.Encode.Stride < 0 || c.Encode.PadToLength < 0 || c.Encode.PadToMultipleOf < 0 {
		return errs.Errorf(errs.ErrConfig, "encode lengths must be >= 0")
	}
	if c.Train.VocabSize <= 0 {
		return errs.Errorf(errs.ErrConfig, "train.vocab_size must be > 0, got %d", c.Train.VocabSize)
	}
	return nil
}

// ParseLogLevel converts a level name (debug, info, warn or error) to a slog.Level.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, errs.Wrap(errs.ErrConfig, err, "invalid log level %q", name)
	}
	return level, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_format", c.LogFormat)
	v.SetDefault("tokenizer.path", c.Tokenizer.Path)
	v.SetDefault("tokenizer.cache_dir", c.Tokenizer.CacheDir)
	v.SetDefault("tokenizer.revision", c.Tokenizer.Revision)
	v.SetDefault("encode.add_special_tokens", c.Encode.AddSpecialTokens)
	v.SetDefault("encode.max_length", c.Encode.MaxLength)
	v.SetDefault("encode.stride", c.Encode.Stride)
	v.SetDefault("encode.direction", c.Encode.Direction)
	v.SetDefault("encode.pad_to_length", c.Encode.PadToLength)
	v.SetDefault("encode.pad_to_multiple_of", c.Encode.PadToMultipleOf)
	v.SetDefault("encode.output", c.Encode.Output)
	v.SetDefault("train.model", c.Train.Model)
	v.SetDefault("train.vocab_size", c.Train.VocabSize)
	v.SetDefault("train.min_frequency", c.Train.MinFrequency)
	v.SetDefault("train.special_tokens", c.Train.SpecialTokens)
	v.SetDefault("train.unk_token", c.Train.UnkToken)
	v.SetDefault("train.lowercase", c.Train.Lowercase)
	v.SetDefault("train.show_progress", c.Train.ShowProgress)
}

// flagKeys maps the configuration keys to their command line flags.
var flagKeys = [][2]string{
	{"log_level", "log-level"},
	{"log_format", "log-format"},
	{"tokenizer.path", "tokenizer-path"},
	{"tokenizer.cache_dir", "tokenizer-cache-dir"},
	{"tokenizer.revision", "tokenizer-revision"},
	{"encode.add_special_tokens", "encode-add-special-tokens"},
	{"encode.max_length", "encode-max-length"},
	{"encode.stride", "encode-stride"},
	{"encode.direction", "encode-direction"},
	{"encode.pad_to_length", "encode-pad-to-length"},
	{"encode.pad_to_multiple_of", "encode-pad-to-multiple-of"},
	{"encode.output", "encode-output"},
	{"train.model", "train-model"},
	{"train.vocab_size", "train-vocab-size"},
	{"train.min_frequency", "train-min-frequency"},
	{"train.special_tokens", "train-special-tokens"},
	{"train.unk_token", "train-unk-token"},
	{"train.lowercase", "train-lowercase"},
	{"train.show_progress", "train-show-progress"},
}

// bindFlags binds the flags found in fs to their nested keys. Flags take precedence only
// when set in the command line.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, kf := range flagKeys {
		flag := fs.Lookup(kf[1])
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(kf[0], flag); err != nil {
			return err
		}
	}
	return nil
}
