// Package confloader loads layered configuration with koanf and watches
// the configuration file for changes.
//
// Sources, later ones overriding earlier:
//
//  1. Defaults (LoadMap, or the target struct's preset values)
//  2. YAML file
//  3. Environment variables: TALLY_STORAGE__DATA_DIR sets storage.data_dir
//  4. Explicit overrides (LoadMap), e.g. command-line flags
package confloader
