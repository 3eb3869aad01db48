// Command adcatalog keeps a catalog of the banner ads shown on the fiction
// site's home page.
//
// Architecture overview:
//   - Capture: internal/capture drives Chrome through chromedp, scrolls every ad container into view,
//     collects 300x250 image responses from the network and joins them with the banner links found in
//     the (nested iframe) DOM.
//   - Catalog: internal/catalog folds each captured ad into the published index. Ads within the RMS
//     distance threshold of a new ad are moved to quarantine so the index never holds two copies of
//     the same creative. Resources live in a storage.Store (local directory, GCS bucket or memory).
//   - Enrichment: ads linking to a fiction page are enriched through the mobile content API
//     (internal/enrich) and the fiction record plus a 200x300 cover are stored alongside.
//   - Sinks: accepted and superseded ads and saved content are optionally announced on Pub/Sub and
//     recorded in a Postgres audit table.
//
// Commands:
//   - adcatalog run: one capture pass. Exits non-zero when the page layout no longer matches.
//   - adcatalog check [--delete]: compare the indexes with the stored images.
//   - adcatalog fetch <id>: enrich and store a single fiction record.
//   - adcatalog serve: read-only HTTP view of the catalog with /metrics.
//
// Configuration comes from an optional YAML file (--config), a .env file and ADCATALOG_* environment
// variables, e.g. ADCATALOG_ENRICH_REFRESH_TOKEN, ADCATALOG_ENRICH_CLIENT_SECRET,
// ADCATALOG_CATALOG_BACKEND=gcs and ADCATALOG_CATALOG_GCS_BUCKET.
package main
