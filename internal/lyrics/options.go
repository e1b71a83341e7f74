package lyrics

import "mixtape/internal/config"

// OptionsFromConfig builds synchronizer options from the [lyrics] section.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	chain, err := NewDecoderChain(cfg.Lyrics.Encodings)
	if err != nil {
		return Options{}, err
	}
	classifier := DefaultClassifier()
	classifier.MinTaggedLines = cfg.Lyrics.MinTaggedLines
	classifier.MinTaggedRatio = cfg.Lyrics.MinTaggedRatio

	opts := Options{
		Enabled:     cfg.Lyrics.Enabled,
		Decoders:    chain,
		Classifier:  classifier,
		LastCueHold: cfg.Lyrics.LastCueHoldSeconds,
	}
	if cfg.Lyrics.TraditionalToSimplified {
		transform, err := TraditionalToSimplified()
		if err != nil {
			return Options{}, err
		}
		opts.Transform = transform
	}
	return opts, nil
}
