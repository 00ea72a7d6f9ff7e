package sqlinline

const QGenerationStats = `--sql 3a9f61d2-7c45-4b8a-b0e6-5dd218c9a374
select
  count(*)                                                            as total,
  count(*) filter (where status = 'success')                          as succeeded,
  count(*) filter (where status = 'failed')                           as failed,
  count(*) filter (where status = 'processing')                       as processing,
  count(*) filter (where kind = 'video' and status = 'success')       as video_succeeded,
  count(*) filter (where created_at > now() - interval '24 hours')    as last24,
  coalesce(sum(cost_usd) filter (where status = 'success'), 0)        as total_cost_usd
from generations;
`
